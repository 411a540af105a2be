// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// SharedSecret performs ECDH on the Edwards-form Ed25519 keys local and
// peerPublic, using the birational map between the Edwards25519 and
// Curve25519 (Montgomery) curves. This lets pairing and telemetry
// derive a shared symmetric key from the same long-lived signing
// identities without a second keypair.
//
// Returns an error if peerPublic is not the canonical encoding of a
// valid Edwards25519 point -- this is also how the pairing engine
// validates candidate keys before presenting them to the user.
func SharedSecret(localPrivate ed25519.PrivateKey, peerPublic ed25519.PublicKey) ([]byte, error) {
	if len(localPrivate) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity: local private key has %d bytes, want %d", len(localPrivate), ed25519.PrivateKeySize)
	}
	if len(peerPublic) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity: peer public key has %d bytes, want %d", len(peerPublic), ed25519.PublicKeySize)
	}

	peerPoint, err := new(edwards25519.Point).SetBytes(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("identity: peer public key is not a valid Ed25519 point: %w", err)
	}
	// SetBytes also accepts non-canonical encodings (a y coordinate
	// of p or more); reject anything that does not re-encode identically.
	if !bytes.Equal(peerPoint.Bytes(), peerPublic) {
		return nil, fmt.Errorf("identity: peer public key is not a canonical Ed25519 point encoding")
	}
	peerMontgomery := peerPoint.BytesMontgomery()

	localScalar := ed25519SeedToX25519Scalar(localPrivate.Seed())

	shared, err := curve25519.X25519(localScalar, peerMontgomery)
	if err != nil {
		return nil, fmt.Errorf("identity: X25519 ECDH failed: %w", err)
	}
	return shared, nil
}

// ed25519SeedToX25519Scalar derives the X25519 private scalar
// corresponding to an Ed25519 seed: SHA-512(seed), keeping the first 32
// bytes. golang.org/x/crypto/curve25519.X25519 applies the RFC 7748
// clamp internally, so no manual bit-twiddling is needed here.
func ed25519SeedToX25519Scalar(seed []byte) []byte {
	hashed := sha512.Sum512(seed)
	scalar := make([]byte, curve25519.ScalarSize)
	copy(scalar, hashed[:32])
	return scalar
}
