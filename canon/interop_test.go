// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package canon

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/interop"
)

func sampleFields() []interop.Field {
	ts := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	return []interop.Field{
		{Thing: "sensor-01", Timestamp: ts, Name: "Temperature", Type: interop.Momentary, QoS: interop.AutomaticReadout, Value: interop.QuantityValue(21.5, 1, "°C")},
		{Thing: "sensor-01", Timestamp: ts, Name: "Humidity", Type: interop.Momentary, QoS: interop.AutomaticReadout, Value: interop.QuantityValue(48.37, 2, "%")},
		{Thing: "sensor-01", Timestamp: ts, Name: "Online", Type: interop.Status, QoS: interop.AutomaticReadout, Value: interop.BoolValue(true)},
		{Thing: "sensor-01", Timestamp: ts, Name: "Name", Type: interop.Identity, QoS: interop.AutomaticReadout, Value: interop.StringValue("Weather Station 1")},
	}
}

func TestInteroperableRoundTrip(t *testing.T) {
	fields := sampleFields()

	encoded, err := InteroperableBytes(fields)
	if err != nil {
		t.Fatalf("InteroperableBytes: %v", err)
	}

	decoded, err := decodeFields(encoded)
	if err != nil {
		t.Fatalf("decodeFields: %v", err)
	}

	if len(decoded) != len(fields) {
		t.Fatalf("decoded %d fields, want %d", len(decoded), len(fields))
	}
	for i := range fields {
		if decoded[i].Name != fields[i].Name {
			t.Errorf("field %d name = %q, want %q (order not preserved)", i, decoded[i].Name, fields[i].Name)
		}
	}
}

func TestInteroperableRoundingToDecimals(t *testing.T) {
	fields := []interop.Field{
		{Name: "Pressure", Value: interop.QuantityValue(1013.2567, 2, "hPa")},
	}
	encoded, err := InteroperableBytes(fields)
	if err != nil {
		t.Fatalf("InteroperableBytes: %v", err)
	}
	decoded, err := decodeFields(encoded)
	if err != nil {
		t.Fatalf("decodeFields: %v", err)
	}
	if got := decoded[0].Value.Quantity.Magnitude; got != 1013.26 {
		t.Errorf("rounded magnitude = %v, want 1013.26", got)
	}
}

func TestInteroperableRejectsReservedSignatureFieldOnInput(t *testing.T) {
	fields := []interop.Field{{Name: "Signature", Value: interop.StringValue("x")}}
	if _, err := InteroperableBytes(fields); err == nil {
		t.Fatal("expected error for input containing reserved Signature field")
	}
}

func TestSignedPayloadRoundTrip(t *testing.T) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	fields := sampleFields()
	unsigned, err := InteroperableBytes(fields)
	if err != nil {
		t.Fatalf("InteroperableBytes: %v", err)
	}
	signature := ed25519.Sign(private, unsigned)
	signatureEncoded := base64.RawURLEncoding.EncodeToString(signature)

	signedAt := time.Now()
	signedPayload, err := BuildSignedPayload(fields, signatureEncoded, signedAt)
	if err != nil {
		t.Fatalf("BuildSignedPayload: %v", err)
	}

	stripped, extractedSig, err := StripSignature(signedPayload)
	if err != nil {
		t.Fatalf("StripSignature: %v", err)
	}

	if len(stripped) != len(fields) {
		t.Fatalf("stripped %d fields, want %d", len(stripped), len(fields))
	}
	for i := range fields {
		if stripped[i].Name != fields[i].Name {
			t.Errorf("stripped field %d name = %q, want %q", i, stripped[i].Name, fields[i].Name)
		}
	}

	rebuiltUnsigned, err := InteroperableBytes(stripped)
	if err != nil {
		t.Fatalf("InteroperableBytes(stripped): %v", err)
	}
	if !ed25519.Verify(public, rebuiltUnsigned, extractedSig) {
		t.Fatal("signature did not verify after strip/rebuild round-trip")
	}
}

func TestStripSignatureRejectsZeroOrMultiple(t *testing.T) {
	fields := sampleFields()
	unsigned, err := InteroperableBytes(fields)
	if err != nil {
		t.Fatalf("InteroperableBytes: %v", err)
	}
	if _, _, err := StripSignature(unsigned); err == nil {
		t.Fatal("expected error for payload with zero Signature fields")
	}

	withTwoSignatures := append([]interop.Field{}, fields...)
	withTwoSignatures = append(withTwoSignatures,
		interop.Field{Name: interop.ReservedSignatureField, Type: interop.Computed, Value: interop.StringValue("c2ln")},
		interop.Field{Name: interop.ReservedSignatureField, Type: interop.Computed, Value: interop.StringValue("c2ln2")},
	)
	doubleSigned := encodeFields(withTwoSignatures)
	if _, _, err := StripSignature(doubleSigned); err == nil {
		t.Fatal("expected error for payload with two Signature fields")
	}
}
