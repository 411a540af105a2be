// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"encoding/json"
	"math/rand"
)

// blobEscapeProbability is the chance of emitting a BLOB instead of
// walking the JSON object/array, checked once before the per-entry/
// per-element walk.
const blobEscapeProbability = 0.1

// perturbJSONObject implements the JSON object row: per entry, halve
// key / double key / random key / drop / recursively perturb value;
// occasionally emit BLOB instead of walking the object at all.
func perturbJSONObject(payload []byte, rng *rand.Rand) []byte {
	if rng.Float64() < blobEscapeProbability {
		blob, _ := largeBlob(rng)
		return blob
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return payload
	}

	out := make(map[string]json.RawMessage, len(obj))
	for key, value := range obj {
		switch rng.Intn(5) {
		case 0:
			if len(key) > 1 {
				key = key[:len(key)/2]
			}
		case 1:
			key = key + key
		case 2:
			key = randomKey(rng)
		case 3:
			continue // drop
		case 4:
			value = perturbRawValue(value, rng)
		}
		out[key] = value
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return payload
	}
	return encoded
}

// perturbJSONArray implements the JSON array row: per element, keep /
// perturb / random / drop; occasionally emit BLOB instead.
func perturbJSONArray(payload []byte, rng *rand.Rand) []byte {
	if rng.Float64() < blobEscapeProbability {
		blob, _ := largeBlob(rng)
		return blob
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(payload, &arr); err != nil {
		return payload
	}

	out := make([]json.RawMessage, 0, len(arr))
	for _, element := range arr {
		switch rng.Intn(4) {
		case 0:
			out = append(out, element) // keep
		case 1:
			out = append(out, perturbRawValue(element, rng))
		case 2:
			out = append(out, randomJSONScalar(rng))
		case 3:
			// drop
		}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return payload
	}
	return encoded
}

// perturbRawValue classifies a JSON value's raw bytes the same way a
// top-level payload would be classified, and recursively perturbs it --
// this is how a nested string, number, object, or array inside a JSON
// document gets mutated by the same per-type menu as a bare payload.
func perturbRawValue(raw json.RawMessage, rng *rand.Rand) json.RawMessage {
	kind := Classify(raw)
	return Perturb(kind, raw, 0, rng)
}

func randomKey(rng *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	n := 4 + rng.Intn(8)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

func randomJSONScalar(rng *rand.Rand) json.RawMessage {
	switch rng.Intn(3) {
	case 0:
		encoded, _ := json.Marshal(rng.Int63())
		return encoded
	case 1:
		encoded, _ := json.Marshal(rng.NormFloat64())
		return encoded
	default:
		encoded, _ := json.Marshal(kilroy)
		return encoded
	}
}
