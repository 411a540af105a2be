// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/identity"
	"github.com/hardenmqtt/hardenmqtt/interop"
	"github.com/hardenmqtt/hardenmqtt/lib/clock"
	"github.com/hardenmqtt/hardenmqtt/mqtt"
	"github.com/hardenmqtt/hardenmqtt/mqtt/memory"
	"github.com/hardenmqtt/hardenmqtt/sensor"
	"github.com/hardenmqtt/hardenmqtt/settings"
)

func temperatureReading(celsius float64) sensor.Reading {
	return sensor.Reading{Temperature: &celsius, Readout: time.Unix(1700000000, 0)}
}

// TestInteroperableSignVerifyRoundTrip checks that signing and then
// verifying an interoperable payload recovers the original fields.
func TestInteroperableSignVerifyRoundTrip(t *testing.T) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	fields := temperatureReading(21.5).ToFields("Sensor-1")

	signed, err := SignInteroperable(fields, private, time.Unix(1700000001, 0))
	if err != nil {
		t.Fatalf("SignInteroperable: %v", err)
	}

	got, err := VerifyInteroperable(signed, public)
	if err != nil {
		t.Fatalf("VerifyInteroperable: %v", err)
	}

	if len(got) != len(fields) {
		t.Fatalf("got %d fields, want %d", len(got), len(fields))
	}
	for i := range fields {
		if got[i].Name != fields[i].Name {
			t.Errorf("field %d name = %q, want %q", i, got[i].Name, fields[i].Name)
		}
	}
}

// TestConfidentialRoundTrip checks that decrypting with the shared
// secret derived from either side's (sk, peer pk) pair recovers the
// original plaintext.
func TestConfidentialRoundTrip(t *testing.T) {
	aPublic, aPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey (a): %v", err)
	}
	bPublic, bPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey (b): %v", err)
	}

	plaintext := []byte("<fields><field name=\"Temperature\"/></fields>")

	secretA, err := identity.SharedSecret(aPrivate, bPublic)
	if err != nil {
		t.Fatalf("SharedSecret(a): %v", err)
	}
	keyA := DeriveKey(secretA)
	frame, err := Encrypt(plaintext, keyA)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	secretB, err := identity.SharedSecret(bPrivate, aPublic)
	if err != nil {
		t.Fatalf("SharedSecret(b): %v", err)
	}
	keyB := DeriveKey(secretB)

	decrypted, err := Decrypt(frame, keyB)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

// TestConfidentialWrongKeyFails checks that a third party without the
// peer's secret cannot decrypt.
func TestConfidentialWrongKeyFails(t *testing.T) {
	_, senderPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey (sender): %v", err)
	}
	receiverPublic, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey (receiver): %v", err)
	}
	_, observerPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey (observer): %v", err)
	}

	sharedSecret, err := identity.SharedSecret(senderPrivate, receiverPublic)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	key := DeriveKey(sharedSecret)
	frame, err := Encrypt([]byte("secret telemetry"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	wrongSecret, err := identity.SharedSecret(observerPrivate, receiverPublic)
	if err != nil {
		t.Fatalf("SharedSecret (observer): %v", err)
	}
	wrongKey := DeriveKey(wrongSecret)

	if _, err := Decrypt(frame, wrongKey); err == nil {
		t.Fatal("expected decrypt with the wrong key to fail")
	}
}

// TestStructuralGuardRejectsOversizedPayload checks that anything over
// the 64 KiB guard is rejected before an XML parser ever sees it.
func TestStructuralGuardRejectsOversizedPayload(t *testing.T) {
	_, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	huge := make([]byte, MaxInteroperablePayloadBytes+1)
	for i := range huge {
		huge[i] = 'A'
	}

	if _, err := VerifyInteroperable(huge, private.Public().(ed25519.PublicKey)); err == nil {
		t.Fatal("expected the oversized payload to be rejected")
	}
}

// TestSignedPublicVerifyScenario checks a sign/publish/verify round
// trip for the plain-signature, no-encryption publish form.
func TestSignedPublicVerifyScenario(t *testing.T) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	fields := temperatureReading(21.5).ToFields("Sensor-1")

	signed, err := SignInteroperable(fields, private, time.Unix(1700000002, 0))
	if err != nil {
		t.Fatalf("SignInteroperable: %v", err)
	}

	got, err := VerifySignedPublic(signed, public)
	if err != nil {
		t.Fatalf("VerifySignedPublic: %v", err)
	}

	var found bool
	for _, f := range got {
		if f.Name == "Temperature" && f.Value.Kind == interop.KindQuantity && f.Value.Quantity.Magnitude == 21.5 && f.Value.Quantity.Unit == "°C" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Temperature=21.5°C field in %+v", got)
	}

	// Removing the Signature field before verification must cause a
	// drop: rebuild the unsigned payload and verify it directly.
	unsigned, err := canon.InteroperableBytes(fields)
	if err != nil {
		t.Fatalf("InteroperableBytes: %v", err)
	}
	if _, err := VerifySignedPublic(unsigned, public); err == nil {
		t.Fatal("expected verification of an unsigned payload to fail")
	}
}

// TestPublisherPublishAllEndToEnd exercises the full publish pipeline
// over the in-memory broker, including the confidential step, and
// checks that a subscriber can recover the reading from each topic.
func TestPublisherPublishAllEndToEnd(t *testing.T) {
	broker := memory.NewBroker()
	sensorClient := memory.NewClient(broker)
	displayClient := memory.NewClient(broker)
	ctx := context.Background()
	if err := sensorClient.Connect(ctx); err != nil {
		t.Fatalf("sensor Connect: %v", err)
	}
	if err := displayClient.Connect(ctx); err != nil {
		t.Fatalf("display Connect: %v", err)
	}

	sensorStore := settings.NewMemoryStore()
	sensorID, err := identity.LoadOrCreate(sensorStore, "Sensor", func() string { return "sensor-1" })
	if err != nil {
		t.Fatalf("LoadOrCreate (sensor): %v", err)
	}
	displayStore := settings.NewMemoryStore()
	displayID, err := identity.LoadOrCreate(displayStore, "Display", func() string { return "display-1" })
	if err != nil {
		t.Fatalf("LoadOrCreate (display): %v", err)
	}

	peerOfDisplay := identity.PeerBinding{PeerPublicKey: displayID.Public, PeerDeviceID: displayID.DeviceID}

	publisher := &Publisher{Client: sensorClient, Local: sensorID, Clock: clock.Real()}

	received := make(chan mqtt.Message, 8)
	if err := displayClient.Subscribe("HardenMqtt/#", func(m mqtt.Message) { received <- m }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	celsius := 21.5
	reading := sensor.Reading{Temperature: &celsius, Readout: time.Unix(1700000003, 0)}
	if err := publisher.PublishAll(reading, sensorID.DeviceID, &peerOfDisplay); err != nil {
		t.Fatalf("PublishAll: %v", err)
	}

	topics := make(map[string][]byte)
	deadline := time.After(time.Second)
	expected := 5 // unstructured (1 field) + structured + interoperable + public + confidential
	for len(topics) < expected {
		select {
		case m := <-received:
			topics[m.Topic] = m.Payload
		case <-deadline:
			t.Fatalf("timed out waiting for publishes, got %d of %d: %v", len(topics), expected, topics)
		}
	}

	publicTopic := SecuredPublicTopic(sensorID.PublicKeyBase64Url())
	signedPayload, ok := topics[publicTopic]
	if !ok {
		t.Fatalf("no message on %s", publicTopic)
	}
	if _, err := VerifySignedPublic(signedPayload, sensorID.Public); err != nil {
		t.Fatalf("VerifySignedPublic: %v", err)
	}

	confidentialTopic := SecuredConfidentialTopic(sensorID.PublicKeyBase64Url())
	frameBytes, ok := topics[confidentialTopic]
	if !ok {
		t.Fatalf("no message on %s", confidentialTopic)
	}
	fields, err := VerifySignedConfidential(frameBytes, displayID.PrivateKey(), sensorID.Public)
	if err != nil {
		t.Fatalf("VerifySignedConfidential: %v", err)
	}
	var foundTemperature bool
	for _, f := range fields {
		if f.Name == "Temperature" {
			foundTemperature = true
		}
	}
	if !foundTemperature {
		t.Fatalf("expected a Temperature field in decrypted payload: %+v", fields)
	}

	unstructuredTopic := UnstructuredTopic(sensorID.DeviceID, sensor.FieldTemperature)
	if value, ok := topics[unstructuredTopic]; !ok || !strings.Contains(string(value), "21.5") {
		t.Fatalf("unstructured topic %s missing or wrong: %q", unstructuredTopic, value)
	}
}
