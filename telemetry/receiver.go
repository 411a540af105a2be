// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"crypto/ed25519"
	"fmt"

	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/internal/wire"
	"github.com/hardenmqtt/hardenmqtt/interop"
)

// VerifySignedPublic is the receive-side mirror of PublishSignedPublic:
// it enforces the structural guards and returns the verified field
// list, or an error that the callback boundary maps to a silent drop.
func VerifySignedPublic(payload []byte, peerPublicKey ed25519.PublicKey) ([]interop.Field, error) {
	return VerifyInteroperable(payload, peerPublicKey)
}

// VerifySignedConfidential is the receive-side mirror of
// PublishSignedConfidential: it guards the overall frame size, decrypts
// under the ECDH-derived key shared with peer, then runs the same
// verify path as VerifySignedPublic on the recovered plaintext.
func VerifySignedConfidential(frameBytes []byte, localPrivate ed25519.PrivateKey, peerPublicKey ed25519.PublicKey) ([]interop.Field, error) {
	if err := wire.CheckSize("telemetry: confidential frame", len(frameBytes), MaxInteroperablePayloadBytes+frameHeaderSize, "byte"); err != nil {
		return nil, err
	}

	frame, err := DecodeFrame(frameBytes)
	if err != nil {
		return nil, fmt.Errorf("telemetry: decoding frame: %w", err)
	}

	sharedSecret, err := identity.SharedSecret(localPrivate, peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("telemetry: deriving shared secret: %w", err)
	}
	key := DeriveKey(sharedSecret)

	plaintext, err := Decrypt(frame, key)
	if err != nil {
		return nil, fmt.Errorf("telemetry: decrypting frame: %w", err)
	}

	return VerifyInteroperable(plaintext, peerPublicKey)
}
