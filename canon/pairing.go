// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package canon implements the two canonicalizations whose byte output
// must be bit-exact across independent reimplementations, because
// signatures are taken over them: the pairing-record canonicalization and
// the interoperable sensor-data XML canonicalization.
package canon

import "strings"

// PairingRecord is the broker-visible snapshot of a pairing session. All
// fields are optional strings except as required by the pairing state
// machine. Field names match the JSON wire format exactly -- the pairing
// engine marshals this struct directly.
type PairingRecord struct {
	Nonce string `json:"Nonce,omitempty"`

	MasterPublicKey  string `json:"MasterPublicKey,omitempty"`
	MasterId         string `json:"MasterId,omitempty"`
	MasterType       string `json:"MasterType,omitempty"`
	MasterSignature  string `json:"MasterSignature,omitempty"`

	SlavePublicKey string `json:"SlavePublicKey,omitempty"`
	SlaveId        string `json:"SlaveId,omitempty"`
	SlaveType      string `json:"SlaveType,omitempty"`
	SlaveSignature string `json:"SlaveSignature,omitempty"`
}

// MasterCompleted reports whether all four master fields are populated.
func (r PairingRecord) MasterCompleted() bool {
	return r.MasterPublicKey != "" && r.MasterId != "" && r.MasterType != "" && r.MasterSignature != ""
}

// SlaveCompleted reports whether all four slave fields are populated.
func (r PairingRecord) SlaveCompleted() bool {
	return r.SlavePublicKey != "" && r.SlaveId != "" && r.SlaveType != "" && r.SlaveSignature != ""
}

// Completed reports whether both sides have completed.
func (r PairingRecord) Completed() bool {
	return r.MasterCompleted() && r.SlaveCompleted()
}

// PairingBytes returns the canonical signable bytes for a PairingRecord:
// the seven listed fields, pipe-joined in fixed order, with absent
// fields rendered as empty strings. MasterSignature and SlaveSignature
// are excluded, as are the derived predicates -- they are never part of
// the signable input, so mutating them (or reordering struct fields)
// never changes this output.
func PairingBytes(r PairingRecord) []byte {
	parts := []string{
		r.Nonce,
		r.MasterPublicKey,
		r.MasterId,
		r.MasterType,
		r.SlavePublicKey,
		r.SlaveId,
		r.SlaveType,
	}
	return []byte(strings.Join(parts, "|"))
}
