// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore is a YAML file-backed Store implementation. Every mutation
// is written to disk immediately with an atomic write (temp file,
// fsync, rename) so a crash between writes never leaves a partially
// written settings file.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenFileStore loads an existing settings file, or starts with an
// empty store if path does not exist yet (first run).
func OpenFileStore(path string) (*FileStore, error) {
	store := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("settings: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &store.values); err != nil {
		return nil, fmt.Errorf("settings: parsing %s: %w", path, err)
	}
	if store.values == nil {
		store.values = make(map[string]string)
	}
	return store, nil
}

func (s *FileStore) GetString(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *FileStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.persist()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return s.persist()
}

func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// persist writes the current values atomically: write to a temporary
// file in the same directory, fsync, rename into place, fsync the
// parent directory. Readers never observe a partial write.
func (s *FileStore) persist() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("settings: marshaling: %w", err)
	}

	temporaryPath := s.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("settings: creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("settings: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("settings: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("settings: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, s.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("settings: renaming into place: %w", err)
	}
	if parent, err := os.Open(filepath.Dir(s.path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
