// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package canon

import (
	"crypto/ed25519"
	"testing"
)

func TestPairingBytesDeterministic(t *testing.T) {
	record := PairingRecord{
		Nonce:           "abc",
		MasterPublicKey: "mpk",
		MasterId:        "master-1",
		MasterType:      "Sensor",
		MasterSignature: "should-not-appear",
		SlavePublicKey:  "spk",
		SlaveId:         "slave-1",
		SlaveType:       "Display",
		SlaveSignature:  "also-should-not-appear",
	}

	want := "abc|mpk|master-1|Sensor|spk|slave-1|Display"
	if got := string(PairingBytes(record)); got != want {
		t.Fatalf("PairingBytes = %q, want %q", got, want)
	}

	// Mutating the signature fields must not change the signable bytes.
	mutated := record
	mutated.MasterSignature = "different"
	mutated.SlaveSignature = "different-too"
	if string(PairingBytes(mutated)) != want {
		t.Error("PairingBytes changed when only signature fields were mutated")
	}
}

func TestPairingBytesEmptyFields(t *testing.T) {
	record := PairingRecord{Nonce: "n", MasterType: "Sensor"}
	want := "n|||Sensor|||"
	if got := string(PairingBytes(record)); got != want {
		t.Fatalf("PairingBytes = %q, want %q", got, want)
	}
}

func TestPairingSignatureRoundTrip(t *testing.T) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	record := PairingRecord{
		Nonce:           "session-nonce",
		MasterPublicKey: "mpk",
		MasterId:        "master-1",
		MasterType:      "Sensor",
		SlavePublicKey:  "spk",
		SlaveId:         "slave-1",
		SlaveType:       "Display",
	}

	signable := PairingBytes(record)
	signature := ed25519.Sign(private, signable)

	if !ed25519.Verify(public, signable, signature) {
		t.Fatal("signature did not verify against canonical bytes")
	}

	// A record that differs only in a signature field still produces the
	// same signable bytes, so the same signature still verifies.
	record.MasterSignature = "anything"
	if !ed25519.Verify(public, PairingBytes(record), signature) {
		t.Error("signature stopped verifying after only a signature field changed")
	}

	// A record that differs in one of the seven signed fields must not
	// verify with the old signature.
	record.SlaveId = "slave-2"
	if ed25519.Verify(public, PairingBytes(record), signature) {
		t.Error("signature verified after a signed field changed")
	}
}

func TestPairingRecordCompletedPredicates(t *testing.T) {
	record := PairingRecord{}
	if record.MasterCompleted() || record.SlaveCompleted() || record.Completed() {
		t.Fatal("empty record should not report any predicate as true")
	}

	record.MasterPublicKey = "mpk"
	record.MasterId = "m1"
	record.MasterType = "Sensor"
	record.MasterSignature = "sig"
	if !record.MasterCompleted() {
		t.Error("MasterCompleted should be true once all four master fields are set")
	}
	if record.Completed() {
		t.Error("Completed should require both sides")
	}

	record.SlavePublicKey = "spk"
	record.SlaveId = "s1"
	record.SlaveType = "Display"
	record.SlaveSignature = "sig2"
	if !record.Completed() {
		t.Error("Completed should be true once both sides are complete")
	}
}
