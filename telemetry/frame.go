// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry implements the secure publish/verify pipeline:
// Ed25519 signing of interoperable payloads, ECDH-derived AES-256-CBC
// encryption for confidential telemetry, and the structural guards the
// receive path enforces before trusting anything it parses.
package telemetry

import "fmt"

// IVSize and NonceSize are both AES's block size; the frame format
// places the CBC IV and a transport-only diversifier nonce back to
// back ahead of the ciphertext.
const (
	IVSize    = 16
	NonceSize = 16
	frameHeaderSize = IVSize + NonceSize
)

// EncryptedFrame is the wire form of confidential telemetry: a 32-byte
// public header (IV ‖ Nonce) followed by the AES-256-CBC ciphertext.
// Neither header half is secret -- authentication comes from the
// Ed25519 signature nested inside the plaintext, not from the frame.
type EncryptedFrame struct {
	IV         [IVSize]byte
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// Encode renders the frame to its wire bytes: IV(16) ‖ Nonce(16) ‖
// Ciphertext(n).
func (f EncryptedFrame) Encode() []byte {
	out := make([]byte, frameHeaderSize+len(f.Ciphertext))
	copy(out[:IVSize], f.IV[:])
	copy(out[IVSize:frameHeaderSize], f.Nonce[:])
	copy(out[frameHeaderSize:], f.Ciphertext)
	return out
}

// DecodeFrame splits wire bytes into an EncryptedFrame. A frame whose
// ciphertext would be zero-length (that is, data no longer than the
// 32-byte header) is rejected outright.
func DecodeFrame(data []byte) (EncryptedFrame, error) {
	if len(data) <= frameHeaderSize {
		return EncryptedFrame{}, fmt.Errorf("telemetry: frame is %d bytes, need more than %d", len(data), frameHeaderSize)
	}
	var f EncryptedFrame
	copy(f.IV[:], data[:IVSize])
	copy(f.Nonce[:], data[IVSize:frameHeaderSize])
	f.Ciphertext = append([]byte(nil), data[frameHeaderSize:]...)
	return f, nil
}
