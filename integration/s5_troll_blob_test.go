// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"crypto/rand"
	"testing"

	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

// TestOversizedBlobRejectedAtGuard checks that a 192 MiB random payload
// published to a secured-public-shaped topic is rejected at the 64 KiB
// structural guard without attempting to parse or verify it -- the
// guard check in VerifyInteroperable happens before any signature
// work, so an oversized payload never reaches the canonical decoder.
func TestOversizedBlobRejectedAtGuard(t *testing.T) {
	const oversized = 192 << 20 // 192 MiB, the troll's huge-BLOB draw
	payload := make([]byte, oversized)
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	sensorIdentity := newTestIdentity(t, 0x05, "sensor-5", "Sensor")

	if _, err := telemetry.VerifySignedPublic(payload, sensorIdentity.Public); err == nil {
		t.Fatal("expected an oversized payload to be rejected at the structural guard")
	}

	// A payload right at the guard's boundary is legal to attempt
	// (it may still fail signature verification, but not the guard).
	atLimit := make([]byte, telemetry.MaxInteroperablePayloadBytes)
	_, err := telemetry.VerifySignedPublic(atLimit, sensorIdentity.Public)
	if err == nil {
		t.Fatal("expected garbage at the limit to fail decoding, not pass verification")
	}
	const guardSuffix = "exceeds 65536 byte guard"
	if got := err.Error(); len(got) >= len(guardSuffix) && got[len(got)-len(guardSuffix):] == guardSuffix {
		t.Errorf("payload exactly at the guard should fail for a decoding reason, not the guard itself: %v", err)
	}
}
