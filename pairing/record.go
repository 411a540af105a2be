// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package pairing

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/internal/wire"
)

// MaxRecordBytes is the structural guard on inbound pairing messages:
// anything larger is dropped before JSON parsing even begins (spec
// §4.2, "guards against resource abuse").
const MaxRecordBytes = 1000

// MaxKeyOrIDLength bounds every public-key and device-ID field.
const MaxKeyOrIDLength = 100

// wireRecord mirrors the JSON wire shape of a PairingRecord, plus the
// three derived predicate names a peer might (incorrectly, or simply
// because it round-tripped a value we sent) include. Declaring them
// here -- and discarding them -- lets DisallowUnknownFields reject
// genuinely unrecognized keys while still tolerating these harmless
// round-tripped predicates instead of rejecting the whole record.
type wireRecord struct {
	Nonce string `json:"Nonce,omitempty"`

	MasterPublicKey string `json:"MasterPublicKey,omitempty"`
	MasterId        string `json:"MasterId,omitempty"`
	MasterType      string `json:"MasterType,omitempty"`
	MasterSignature string `json:"MasterSignature,omitempty"`

	SlavePublicKey string `json:"SlavePublicKey,omitempty"`
	SlaveId        string `json:"SlaveId,omitempty"`
	SlaveType      string `json:"SlaveType,omitempty"`
	SlaveSignature string `json:"SlaveSignature,omitempty"`

	// Derived predicates: decoded and discarded.
	MasterCompleted *bool `json:"MasterCompleted,omitempty"`
	SlaveCompleted  *bool `json:"SlaveCompleted,omitempty"`
	Completed       *bool `json:"Completed,omitempty"`
}

// parseAndValidate decodes and validates an inbound pairing message. It
// enforces the size guard, the unknown-key guard, the key/ID length
// caps, and re-verifies any signatures present against their declared
// public keys. A non-nil error means "drop this message": malformed or
// cryptographically invalid pairing messages are never propagated to
// the caller, only logged.
func parseAndValidate(payload []byte) (canon.PairingRecord, error) {
	if err := wire.CheckSize("pairing: message", len(payload), MaxRecordBytes, "byte"); err != nil {
		return canon.PairingRecord{}, err
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	var decoded wireRecord
	if err := decoder.Decode(&decoded); err != nil {
		return canon.PairingRecord{}, fmt.Errorf("pairing: decoding record: %w", err)
	}

	record := canon.PairingRecord{
		Nonce:           decoded.Nonce,
		MasterPublicKey: decoded.MasterPublicKey,
		MasterId:        decoded.MasterId,
		MasterType:      decoded.MasterType,
		MasterSignature: decoded.MasterSignature,
		SlavePublicKey:  decoded.SlavePublicKey,
		SlaveId:         decoded.SlaveId,
		SlaveType:       decoded.SlaveType,
		SlaveSignature:  decoded.SlaveSignature,
	}

	for _, field := range []string{record.MasterPublicKey, record.SlavePublicKey, record.MasterId, record.SlaveId} {
		if err := wire.CheckSize("pairing: key/id field", len(field), MaxKeyOrIDLength, "character"); err != nil {
			return canon.PairingRecord{}, err
		}
	}

	if err := verifyPresentSignatures(record); err != nil {
		return canon.PairingRecord{}, err
	}

	return record, nil
}

// verifyPresentSignatures re-verifies MasterSignature and SlaveSignature
// (whichever are present) against the canonical bytes of record, using
// the public keys the record itself declares. A record with a signature
// but no corresponding public key, an undecodable signature, or a
// signature that fails to verify is rejected outright.
func verifyPresentSignatures(record canon.PairingRecord) error {
	signable := canon.PairingBytes(record)

	if record.MasterSignature != "" {
		if record.MasterPublicKey == "" {
			return fmt.Errorf("pairing: MasterSignature present without MasterPublicKey")
		}
		if err := verifyOne(record.MasterPublicKey, record.MasterSignature, signable); err != nil {
			return fmt.Errorf("pairing: master signature invalid: %w", err)
		}
	}
	if record.SlaveSignature != "" {
		if record.SlavePublicKey == "" {
			return fmt.Errorf("pairing: SlaveSignature present without SlavePublicKey")
		}
		if err := verifyOne(record.SlavePublicKey, record.SlaveSignature, signable); err != nil {
			return fmt.Errorf("pairing: slave signature invalid: %w", err)
		}
	}
	return nil
}

func verifyOne(publicKeyBase64Url, signatureBase64Url string, signable []byte) error {
	if err := wire.CheckSize("signature", len(signatureBase64Url), canon.MaxSignatureBase64UrlLength, "base64url character"); err != nil {
		return err
	}
	publicKey, err := decodePublicKey(publicKeyBase64Url)
	if err != nil {
		return err
	}
	signature, err := wire.DecodeBase64Url(signatureBase64Url)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}
	if !ed25519.Verify(publicKey, signable, signature) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}

func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := wire.DecodeBase64Url(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

func signRecord(private ed25519.PrivateKey, record canon.PairingRecord) string {
	signature := ed25519.Sign(private, canon.PairingBytes(record))
	return wire.EncodeBase64Url(signature)
}

// marshalRecord encodes record to its JSON wire form for publication.
func marshalRecord(record canon.PairingRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("pairing: marshaling record: %w", err)
	}
	return data, nil
}
