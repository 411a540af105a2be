// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bootstrap configuration shared by the
// hardenmqtt-sensor, hardenmqtt-display, and hardenmqtt-troll binaries.
//
// Configuration is loaded from a single file specified by:
//   - the HARDENMQTT_CONFIG environment variable, or
//   - the --config flag
//
// There are no fallbacks or automatic discovery -- this keeps a
// binary's effective configuration auditable from one file. Per-device
// identity and broker connection details live in the settings.Store
// instead (see settings.Store's well-known keys); this file only
// configures things a fresh device has no persisted opinion about yet.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration for one HardenMQTT binary.
type Config struct {
	// SettingsPath is the file the settings.Store persists device
	// identity and broker connection details to.
	SettingsPath string `yaml:"settings_path"`

	// DeviceType is this device's type string, e.g. "Sensor" or
	// "Display" -- used both as the local half of a pairing record and
	// as the Thing reference on published telemetry.
	DeviceType string `yaml:"device_type"`

	// RemoteType is the peer type this device pairs with, e.g. a
	// sensor's RemoteType is "Display" and vice versa.
	RemoteType string `yaml:"remote_type"`

	// Trolliness scales how often the troll mutator actually perturbs
	// a payload; higher means less frequent mutation. Ignored by the
	// sensor and display binaries.
	Trolliness int `yaml:"trolliness"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when a field is absent from
// the loaded file.
func Default() *Config {
	return &Config{
		SettingsPath: "hardenmqtt-settings.yaml",
		DeviceType:   "Sensor",
		RemoteType:   "Display",
		Trolliness:   0,
		LogLevel:     "info",
	}
}

// Load loads configuration from the HARDENMQTT_CONFIG environment
// variable. There is no fallback: if it is not set, this fails and the
// caller should fall back to an explicit --config flag value via
// LoadFile.
func Load() (*Config, error) {
	path := os.Getenv("HARDENMQTT_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: HARDENMQTT_CONFIG environment variable not set; pass --config or set it")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, starting
// from Default and overlaying whatever the file specifies.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
