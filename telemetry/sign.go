// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/internal/wire"
	"github.com/hardenmqtt/hardenmqtt/interop"
)

// MaxInteroperablePayloadBytes bounds an incoming payload: anything
// larger is rejected before any XML parsing is attempted, so an
// oversized blob can never reach the parser's worst-case cost.
const MaxInteroperablePayloadBytes = 65536

// SignInteroperable builds the unsigned interoperable payload from
// fields, signs it, and returns the signed payload bytes (the unsigned
// bytes plus a trailing Signature field) ready to publish.
func SignInteroperable(fields []interop.Field, private ed25519.PrivateKey, signedAt time.Time) ([]byte, error) {
	unsigned, err := canon.InteroperableBytes(fields)
	if err != nil {
		return nil, fmt.Errorf("telemetry: rendering unsigned payload: %w", err)
	}
	signature := ed25519.Sign(private, unsigned)
	signed, err := canon.BuildSignedPayload(fields, wire.EncodeBase64Url(signature), signedAt)
	if err != nil {
		return nil, fmt.Errorf("telemetry: rendering signed payload: %w", err)
	}
	return signed, nil
}

// VerifyInteroperable is the mirror of SignInteroperable: it enforces
// the pre-parse size guard, strips the Signature field, rebuilds the
// signable bytes, and verifies against publicKey. On success it
// returns the fields with the Signature field removed, in the order
// they appeared in the payload.
func VerifyInteroperable(signedPayload []byte, publicKey ed25519.PublicKey) ([]interop.Field, error) {
	if err := wire.CheckSize("telemetry: payload", len(signedPayload), MaxInteroperablePayloadBytes, "byte"); err != nil {
		return nil, err
	}

	fields, signature, err := canon.StripSignature(signedPayload)
	if err != nil {
		return nil, fmt.Errorf("telemetry: stripping signature: %w", err)
	}

	signable, err := canon.InteroperableBytes(fields)
	if err != nil {
		return nil, fmt.Errorf("telemetry: rebuilding signable bytes: %w", err)
	}
	if !ed25519.Verify(publicKey, signable, signature) {
		return nil, fmt.Errorf("telemetry: signature does not verify")
	}
	return fields, nil
}
