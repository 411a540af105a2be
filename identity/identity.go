// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity generates, persists, and loads the single long-lived
// Ed25519 keypair each device uses for pairing and secure telemetry.
//
// The private scalar is held in a *secret.Buffer (mmap-backed, locked
// against swap, zeroed on Close) for as long as the process runs --
// never as a plain []byte or string that the garbage collector might
// copy or that could end up in a core dump.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/hardenmqtt/hardenmqtt/internal/wire"
	"github.com/hardenmqtt/hardenmqtt/lib/secret"
	"github.com/hardenmqtt/hardenmqtt/settings"
)

// DeviceIdentity is a device's long-lived cryptographic identity plus
// the descriptive attributes the pairing protocol and telemetry
// publisher need.
type DeviceIdentity struct {
	// Private holds the 64-byte Ed25519 private key (seed || public)
	// in protected memory. Call Close when the identity is no longer
	// needed.
	Private *secret.Buffer

	// Public is the 32-byte Ed25519 public key.
	Public ed25519.PublicKey

	// DeviceID is the human device ID, persisted alongside the keypair.
	DeviceID string

	// DeviceType is the device type tag, e.g. "Sensor" or "Display".
	// It is not persisted -- it is fixed by which binary is running.
	DeviceType string
}

// PrivateKey returns the Ed25519 private key. The returned slice
// aliases protected memory; do not retain it beyond the DeviceIdentity's
// lifetime.
func (d *DeviceIdentity) PrivateKey() ed25519.PrivateKey {
	return ed25519.PrivateKey(d.Private.Bytes())
}

// Close releases the protected private key memory. Idempotent.
func (d *DeviceIdentity) Close() error {
	if d.Private == nil {
		return nil
	}
	return d.Private.Close()
}

// PublicKeyBase64Url encodes the public key with unpadded base64url, the
// form mandated for use as an MQTT topic segment (no '/', '+', or '#').
func (d *DeviceIdentity) PublicKeyBase64Url() string {
	return wire.EncodeBase64Url(d.Public)
}

// LoadOrCreate loads a device's identity from store, generating and
// persisting a new Ed25519 keypair and device ID on first run. deviceType
// is never persisted -- it is supplied fresh by the caller (the sensor or
// display binary knows its own role) and is not trusted from storage.
func LoadOrCreate(store settings.Store, deviceType string, newDeviceID func() string) (*DeviceIdentity, error) {
	deviceID, hasDeviceID := store.GetString(settings.KeyDeviceID)
	privateEncoded, hasPrivate := store.GetString(settings.KeyEd25519Private)

	if hasDeviceID && hasPrivate {
		privateBytes, err := wire.DecodeBase64Url(privateEncoded)
		if err != nil {
			return nil, fmt.Errorf("identity: decoding stored private key: %w", err)
		}
		if len(privateBytes) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("identity: stored private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
		}
		private, err := secret.NewFromBytes(privateBytes)
		if err != nil {
			return nil, fmt.Errorf("identity: protecting stored private key: %w", err)
		}
		public := ed25519.PrivateKey(private.Bytes()).Public().(ed25519.PublicKey)
		return &DeviceIdentity{
			Private:    private,
			Public:     public,
			DeviceID:   deviceID,
			DeviceType: deviceType,
		}, nil
	}

	public, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generating Ed25519 keypair: %w", err)
	}

	deviceID = newDeviceID()

	privateCopy := append([]byte(nil), privateKey...)
	private, err := secret.NewFromBytes(privateCopy)
	if err != nil {
		return nil, fmt.Errorf("identity: protecting generated private key: %w", err)
	}

	if err := store.SetString(settings.KeyEd25519Private, wire.EncodeBase64Url(privateKey)); err != nil {
		private.Close()
		return nil, fmt.Errorf("identity: persisting private key: %w", err)
	}
	if err := store.SetString(settings.KeyDeviceID, deviceID); err != nil {
		private.Close()
		return nil, fmt.Errorf("identity: persisting device ID: %w", err)
	}

	return &DeviceIdentity{
		Private:    private,
		Public:     public,
		DeviceID:   deviceID,
		DeviceType: deviceType,
	}, nil
}
