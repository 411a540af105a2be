// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Mutator applies the type-specific perturbation menu below.
type Mutator struct{}

// Perturb is the method form of the free function Perturb.
func (Mutator) Perturb(kind Kind, payload []byte, trolliness int, rng *rand.Rand) []byte {
	return Perturb(kind, payload, trolliness, rng)
}

// Perturb applies one randomly selected operation from kind's
// perturbation menu to payload, scaled by trolliness: with probability
// 1/(trolliness+1) the payload is actually mutated, otherwise it passes
// through unchanged. Higher trolliness means less frequent mutation.
func Perturb(kind Kind, payload []byte, trolliness int, rng *rand.Rand) []byte {
	if !shouldMutate(trolliness, rng) {
		return payload
	}
	switch kind {
	case KindInt64:
		return perturbInteger(payload, rng)
	case KindFloat:
		return perturbFloat(payload, rng)
	case KindDuration:
		return perturbDuration(payload, rng)
	case KindDateTime:
		return perturbDateTime(payload, rng)
	case KindURI:
		return perturbURI(payload, rng)
	case KindJSONObject:
		return perturbJSONObject(payload, rng)
	case KindJSONArray:
		return perturbJSONArray(payload, rng)
	case KindXML:
		return perturbXML(payload, rng)
	case KindString:
		return perturbString(payload, rng)
	case KindBlob:
		return perturbBlob(payload, rng)
	default:
		return payload
	}
}

func shouldMutate(trolliness int, rng *rand.Rand) bool {
	if trolliness < 0 {
		trolliness = 0
	}
	return rng.Intn(trolliness+1) == 0
}

const kilroy = "Kilroy was here"

// perturbInteger implements the Integer row: halve, double, negate,
// randomize, replace-with-string, replace-with-large-BLOB.
func perturbInteger(payload []byte, rng *rand.Rand) []byte {
	n, err := strconv.ParseInt(strings.TrimSpace(string(payload)), 10, 64)
	if err != nil {
		return payload
	}
	switch rng.Intn(6) {
	case 0:
		return []byte(strconv.FormatInt(n/2, 10))
	case 1:
		return []byte(strconv.FormatInt(n*2, 10))
	case 2:
		return []byte(strconv.FormatInt(-n, 10))
	case 3:
		return []byte(strconv.FormatInt(rng.Int63(), 10))
	case 4:
		return []byte(kilroy)
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}

// perturbFloat implements the Float row: halve, double, negate,
// randomize, reformat, string, BLOB.
func perturbFloat(payload []byte, rng *rand.Rand) []byte {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return payload
	}
	switch rng.Intn(7) {
	case 0:
		return []byte(strconv.FormatFloat(f/2, 'f', -1, 64))
	case 1:
		return []byte(strconv.FormatFloat(f*2, 'f', -1, 64))
	case 2:
		return []byte(strconv.FormatFloat(-f, 'f', -1, 64))
	case 3:
		return []byte(strconv.FormatFloat(rng.NormFloat64()*1000, 'f', -1, 64))
	case 4:
		return []byte(strconv.FormatFloat(f, 'e', -1, 64))
	case 5:
		return []byte(kilroy)
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}

// perturbDuration implements the Duration row: halve, double, negate,
// randomize, string, BLOB.
func perturbDuration(payload []byte, rng *rand.Rand) []byte {
	d, err := parseISODuration(strings.TrimSpace(string(payload)))
	if err != nil {
		return payload
	}
	switch rng.Intn(6) {
	case 0:
		return []byte(formatISODuration(d / 2))
	case 1:
		return []byte(formatISODuration(d * 2))
	case 2:
		return []byte(formatISODuration(-d))
	case 3:
		return []byte(formatISODuration(time.Duration(rng.Int63n(int64(365 * 24 * time.Hour)))))
	case 4:
		return []byte(kilroy)
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}

// dateTimeFormat is the layout perturbed date-times are re-rendered in.
const dateTimeFormat = "2006-01-02T15:04:05Z"

// perturbDateTime implements the Date/Time row: halve ticks, double
// ticks, invalidate one of year/month/day/hour/minute/second by +10,
// randomize, string, BLOB.
func perturbDateTime(payload []byte, rng *rand.Rand) []byte {
	t, err := parseAnyDateTime(strings.TrimSpace(string(payload)))
	if err != nil {
		return payload
	}
	epoch := time.Unix(0, 0).UTC()
	ticks := t.Sub(epoch)

	switch rng.Intn(11) {
	case 0:
		return []byte(epoch.Add(ticks / 2).Format(dateTimeFormat))
	case 1:
		return []byte(epoch.Add(ticks * 2).Format(dateTimeFormat))
	case 2:
		return []byte(t.AddDate(10, 0, 0).Format(dateTimeFormat))
	case 3:
		return []byte(t.AddDate(0, 10, 0).Format(dateTimeFormat))
	case 4:
		return []byte(t.AddDate(0, 0, 10).Format(dateTimeFormat))
	case 5:
		return []byte(t.Add(10 * time.Hour).Format(dateTimeFormat))
	case 6:
		return []byte(t.Add(10 * time.Minute).Format(dateTimeFormat))
	case 7:
		return []byte(t.Add(10 * time.Second).Format(dateTimeFormat))
	case 8:
		randomTime := time.Unix(rng.Int63n(4102444800), 0).UTC() // within [1970, 2100)
		return []byte(randomTime.Format(dateTimeFormat))
	case 9:
		return []byte(kilroy)
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}

func parseAnyDateTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("troll: %q is not a recognized date-time", s)
}

// perturbURI implements the URI row: truncate, scheme mangling, host
// substitution, path injection, string, BLOB.
func perturbURI(payload []byte, rng *rand.Rand) []byte {
	s := strings.TrimSpace(string(payload))
	u, err := url.Parse(s)
	if err != nil {
		return payload
	}
	switch rng.Intn(6) {
	case 0:
		if len(s) > 1 {
			return []byte(s[:len(s)/2])
		}
		return []byte(s)
	case 1:
		u.Scheme = "ftp"
		return []byte(u.String())
	case 2:
		u.Host = "troll.invalid"
		return []byte(u.String())
	case 3:
		u.Path = u.Path + "/../../etc/passwd"
		return []byte(u.String())
	case 4:
		return []byte(kilroy)
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}

// perturbString implements the String row: truncate, double,
// substitute, BLOB.
func perturbString(payload []byte, rng *rand.Rand) []byte {
	s := string(payload)
	switch rng.Intn(4) {
	case 0:
		if len(s) > 1 {
			return []byte(s[:len(s)/2])
		}
		return []byte(s)
	case 1:
		return []byte(s + s)
	case 2:
		return []byte(kilroy)
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}

// perturbBlob implements the BLOB row: halve, double (by
// self-concatenation), randomize, or emit a large random BLOB drawn
// from the weighted size distribution.
func perturbBlob(payload []byte, rng *rand.Rand) []byte {
	switch rng.Intn(4) {
	case 0:
		if len(payload) > 1 {
			return payload[:len(payload)/2]
		}
		return payload
	case 1:
		return append(append([]byte{}, payload...), payload...)
	case 2:
		return randomBytes(rng, len(payload))
	default:
		blob, _ := largeBlob(rng)
		return blob
	}
}
