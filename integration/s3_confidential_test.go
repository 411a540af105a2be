// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/sensor"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

// TestConfidentialDecryptRejectsUnrelatedObserver checks that a paired
// sensor and display can decrypt each other's confidential frames, but
// a third party without the peer's private key cannot -- attempting
// decryption under a random, unrelated key must fail with a padding
// error, and the caller must treat that as a dropped message rather
// than a crash.
func TestConfidentialDecryptRejectsUnrelatedObserver(t *testing.T) {
	sensorIdentity := newTestIdentity(t, 0x01, "sensor-1", "Sensor")
	displayIdentity := newTestIdentity(t, 0x02, "display-1", "Display")

	temperature := 21.5
	reading := sensor.Reading{Temperature: &temperature, Readout: time.Now()}
	fields := reading.ToFields("sensor-1")

	signed, err := telemetry.SignInteroperable(fields, sensorIdentity.PrivateKey(), time.Now())
	if err != nil {
		t.Fatalf("SignInteroperable: %v", err)
	}

	sensorSharedSecret, err := identity.SharedSecret(sensorIdentity.PrivateKey(), displayIdentity.Public)
	if err != nil {
		t.Fatalf("sensor SharedSecret: %v", err)
	}
	frame, err := telemetry.Encrypt(signed, telemetry.DeriveKey(sensorSharedSecret))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	frameBytes := frame.Encode()

	fields2, err := telemetry.VerifySignedConfidential(frameBytes, displayIdentity.PrivateKey(), sensorIdentity.Public)
	if err != nil {
		t.Fatalf("display VerifySignedConfidential: %v", err)
	}
	if len(fields2) == 0 {
		t.Fatal("expected at least one verified field")
	}

	observerPublic, observerPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating observer keypair: %v", err)
	}
	if _, err := telemetry.VerifySignedConfidential(frameBytes, observerPrivate, sensorIdentity.Public); err == nil {
		t.Fatal("expected an unrelated observer to fail to decrypt the confidential frame")
	}
	_ = observerPublic
}
