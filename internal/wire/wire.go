// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire holds the small encoding and bounds-checking helpers
// shared by every package that puts Ed25519 keys, signatures, and
// records on the wire: base64url for binary fields, and a common shape
// for the "reject before parsing" structural guards several packages
// independently needed. Each caller still owns and names its own size
// limit (MaxInteroperablePayloadBytes, MaxRecordBytes, and so on) --
// this package only supplies the repeated comparison and error text.
package wire

import (
	"encoding/base64"
	"fmt"
)

// EncodeBase64Url renders b the way every public key, signature, and
// nonce on the wire is rendered: unpadded, URL-safe base64.
func EncodeBase64Url(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64Url reverses EncodeBase64Url.
func DecodeBase64Url(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// CheckSize enforces a pre-parse structural guard: it returns an error
// naming label, actual, and limit (in unit) if actual exceeds limit,
// and nil otherwise. Callers apply this before doing any further
// decoding work, so an oversized input is rejected at a cost
// proportional to its length, not to whatever a parser might do with
// it.
func CheckSize(label string, actual, limit int, unit string) error {
	if actual <= limit {
		return nil
	}
	return fmt.Errorf("%s is %d %s, exceeds %d %s guard", label, actual, unit, limit, unit)
}
