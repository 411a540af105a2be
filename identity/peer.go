// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"fmt"

	"github.com/hardenmqtt/hardenmqtt/internal/wire"
	"github.com/hardenmqtt/hardenmqtt/settings"
)

// PeerBinding is the result of a completed pairing: the peer's public
// key and device ID, held by value. A PeerBinding never holds a live
// reference to the peer process -- only a copy of its public identity,
// per the "no cyclic ownership" design note.
type PeerBinding struct {
	PeerPublicKey ed25519.PublicKey
	PeerDeviceID  string
}

// LoadPeerBinding reads a previously persisted PeerBinding from store.
// The second return value is false if no binding has been persisted yet
// -- its absence is what triggers the pairing engine on startup.
func LoadPeerBinding(store settings.Store) (PeerBinding, bool, error) {
	publicEncoded, hasPublic := store.GetString(settings.KeyPairEd25519Public)
	peerID, hasID := store.GetString(settings.KeyPairID)
	if !hasPublic || !hasID {
		return PeerBinding{}, false, nil
	}

	publicBytes, err := wire.DecodeBase64Url(publicEncoded)
	if err != nil {
		return PeerBinding{}, false, fmt.Errorf("identity: decoding stored peer public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return PeerBinding{}, false, fmt.Errorf("identity: stored peer public key has %d bytes, want %d", len(publicBytes), ed25519.PublicKeySize)
	}

	return PeerBinding{PeerPublicKey: ed25519.PublicKey(publicBytes), PeerDeviceID: peerID}, true, nil
}

// SavePeerBinding persists a PeerBinding. Pairing's idempotence relies
// on this being a plain overwrite: applying the same binding twice
// leaves the store unchanged.
func SavePeerBinding(store settings.Store, binding PeerBinding) error {
	if err := store.SetString(settings.KeyPairEd25519Public, wire.EncodeBase64Url(binding.PeerPublicKey)); err != nil {
		return fmt.Errorf("identity: persisting peer public key: %w", err)
	}
	if err := store.SetString(settings.KeyPairID, binding.PeerDeviceID); err != nil {
		return fmt.Errorf("identity: persisting peer device ID: %w", err)
	}
	return nil
}
