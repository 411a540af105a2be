// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"testing"
	"time"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/interop"
	"github.com/hardenmqtt/hardenmqtt/sensor"
	"github.com/hardenmqtt/hardenmqtt/telemetry"
)

// TestSignedPublicVerifyRecoversTemperatureField checks that a sensor
// publishing a 21.5 degree Celsius temperature reading signed for the
// public representation produces a record from which a verifier
// holding the sensor's public key recovers a Temperature/21.5/°C/
// Momentary field.
func TestSignedPublicVerifyRecoversTemperatureField(t *testing.T) {
	sensorIdentity := newTestIdentity(t, 0x01, "sensor-1", "Sensor")

	temperature := 21.5
	reading := sensor.Reading{Temperature: &temperature, Readout: time.Unix(1_700_000_000, 0)}
	fields := reading.ToFields("sensor-1")

	signed, err := telemetry.SignInteroperable(fields, sensorIdentity.PrivateKey(), time.Now())
	if err != nil {
		t.Fatalf("SignInteroperable: %v", err)
	}

	verified, err := telemetry.VerifySignedPublic(signed, sensorIdentity.Public)
	if err != nil {
		t.Fatalf("VerifySignedPublic: %v", err)
	}

	found := false
	for _, f := range verified {
		if f.Name != sensor.FieldTemperature {
			continue
		}
		found = true
		if f.Type != interop.Momentary {
			t.Errorf("Temperature field type = %v, want Momentary", f.Type)
		}
		if f.Value.Kind != interop.KindQuantity {
			t.Fatalf("Temperature field kind = %v, want quantity", f.Value.Kind)
		}
		if f.Value.Quantity.Magnitude != 21.5 || f.Value.Quantity.Unit != "°C" {
			t.Errorf("Temperature quantity = %+v, want magnitude=21.5 unit=°C", f.Value.Quantity)
		}
	}
	if !found {
		t.Fatal("expected a verified Temperature field")
	}
}

// TestSignedPublicDropsStrippedSignature checks that a display which
// receives a record with the Signature field removed must drop it
// rather than accept an implicitly-trusted payload.
func TestSignedPublicDropsStrippedSignature(t *testing.T) {
	sensorIdentity := newTestIdentity(t, 0x01, "sensor-1", "Sensor")
	temperature := 21.5
	reading := sensor.Reading{Temperature: &temperature, Readout: time.Now()}
	fields := reading.ToFields("sensor-1")

	signed, err := telemetry.SignInteroperable(fields, sensorIdentity.PrivateKey(), time.Now())
	if err != nil {
		t.Fatalf("SignInteroperable: %v", err)
	}

	decoded, err := canon.DecodeInteroperable(signed)
	if err != nil {
		t.Fatalf("DecodeInteroperable: %v", err)
	}
	var withoutSignature []interop.Field
	for _, f := range decoded {
		if f.Name == "Signature" {
			continue
		}
		withoutSignature = append(withoutSignature, f)
	}
	stripped := canon.EncodeFieldsUnchecked(withoutSignature)

	if _, err := telemetry.VerifySignedPublic(stripped, sensorIdentity.Public); err == nil {
		t.Fatal("expected verification to fail once the Signature field is removed")
	}
}
