// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

// DeriveKey derives the AES-256 key from an ECDH shared secret via
// SHA3-256 -- both ends of a confidential exchange must use this same
// derivation or their frames will never decrypt.
func DeriveKey(sharedSecret []byte) [KeySize]byte {
	return sha3.Sum256(sharedSecret)
}

// Encrypt pads plaintext with PKCS#7, generates a random IV and a
// random transport-diversifier Nonce, and encrypts under AES-256-CBC.
func Encrypt(plaintext []byte, key [KeySize]byte) (EncryptedFrame, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return EncryptedFrame{}, fmt.Errorf("telemetry: creating AES cipher: %w", err)
	}

	var frame EncryptedFrame
	if _, err := io.ReadFull(rand.Reader, frame.IV[:]); err != nil {
		return EncryptedFrame{}, fmt.Errorf("telemetry: generating IV: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, frame.Nonce[:]); err != nil {
		return EncryptedFrame{}, fmt.Errorf("telemetry: generating nonce: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, frame.IV[:]).CryptBlocks(ciphertext, padded)
	frame.Ciphertext = ciphertext
	return frame, nil
}

// Decrypt reverses Encrypt. A wrong key almost always surfaces as a
// PKCS#7 unpadding failure -- the caller maps that to a silent drop
// rather than a surfaced error, since there is no way to distinguish
// "wrong key" from "corrupted frame" here.
func Decrypt(frame EncryptedFrame, key [KeySize]byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating AES cipher: %w", err)
	}
	if len(frame.Ciphertext) == 0 {
		return nil, fmt.Errorf("telemetry: zero-length ciphertext")
	}
	if len(frame.Ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("telemetry: ciphertext is not a multiple of the block size")
	}

	padded := make([]byte, len(frame.Ciphertext))
	cipher.NewCBCDecrypter(block, frame.IV[:]).CryptBlocks(padded, frame.Ciphertext)

	return pkcs7Unpad(padded, aes.BlockSize)
}

// pkcs7Pad appends PKCS#7 padding: 1-to-blockSize bytes, each holding
// the pad length, so a full extra block is appended when the input is
// already block-aligned. The standard library has no padding helper.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad validates and strips PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("telemetry: padded data is not block-aligned")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("telemetry: invalid PKCS#7 padding length")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("telemetry: invalid PKCS#7 padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
