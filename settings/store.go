// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings defines the persistent key-value settings store
// contract and provides a YAML file-backed implementation for the
// example binaries.
//
// The store is an external collaborator: the core packages (identity,
// pairing, telemetry) depend only on the Store interface, never on
// FileStore's implementation details.
package settings

// Store is the persistent key-value settings contract. Keys follow a
// dotted namespace: Device.ID, ed25519.p, Pair.Ed25519.Public, Pair.Id,
// MQTT.*, API.*.
type Store interface {
	// GetString returns the value for key and whether it was present.
	GetString(key string) (string, bool)

	// SetString persists value under key.
	SetString(key, value string) error

	// Delete removes key if present. Deleting an absent key is not an
	// error.
	Delete(key string) error

	// Keys returns all keys currently present, in no particular order.
	Keys() []string
}

// Well-known settings keys.
const (
	KeyDeviceID          = "Device.ID"
	KeyEd25519Private    = "ed25519.p"
	KeyPairEd25519Public = "Pair.Ed25519.Public"
	KeyPairID            = "Pair.Id"
	KeyMQTTHost          = "MQTT.Host"
	KeyMQTTPort          = "MQTT.Port"
	KeyMQTTTLS           = "MQTT.Tls"
	KeyMQTTUserName      = "MQTT.UserName"
	KeyMQTTPassword      = "MQTT.Password"
	KeyMQTTTrustServer   = "MQTT.TrustServer"
)
