// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"bytes"
	"encoding/xml"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/hardenmqtt/hardenmqtt/canon"
	"github.com/hardenmqtt/hardenmqtt/interop"
)

// skipSubtreeProbability is the chance a structural XML mutation drops
// an element and everything nested inside it, rather than re-emitting
// it (possibly under a mangled name).
const skipSubtreeProbability = 0.1

// perturbXML implements the XML row: if the document parses as an
// interoperable sensor-data payload, each field is mutated respecting
// its typed variant; otherwise the document undergoes generic
// structural fuzzing of element and attribute local names.
func perturbXML(payload []byte, rng *rand.Rand) []byte {
	if fields, err := canon.DecodeInteroperable(payload); err == nil && len(fields) > 0 {
		return perturbInteroperableDocument(fields, rng)
	}
	return perturbXMLStructure(payload, rng)
}

func perturbInteroperableDocument(fields []interop.Field, rng *rand.Rand) []byte {
	mutated := make([]interop.Field, len(fields))
	for i, f := range fields {
		if rng.Float64() < 0.5 {
			f.Value = perturbFieldValue(f.Value, rng)
		}
		mutated[i] = f
	}
	return canon.EncodeFieldsUnchecked(mutated)
}

var enumVocabulary = []string{"Alarm", "Ok", "Warning", "Unknown"}

// perturbFieldValue mutates a single typed field value in a way that
// respects its variant: boolean negate, int halve/double, datetime
// randomize within a legal range, enum random-member, etc.
func perturbFieldValue(v interop.Value, rng *rand.Rand) interop.Value {
	switch v.Kind {
	case interop.KindBoolean:
		return interop.BoolValue(!v.Bool)
	case interop.KindInt32:
		return interop.Int32Value(scaleInt32(v.Int32, rng))
	case interop.KindInt64:
		return interop.Int64Value(scaleInt64(v.Int64, rng))
	case interop.KindString:
		return interop.StringValue(string(perturbString([]byte(v.Str), rng)))
	case interop.KindDate:
		return interop.DateValue(randomizeWithinYears(v.Date, rng))
	case interop.KindDateTime:
		return interop.DateTimeValue(randomizeWithinYears(v.DateTime, rng))
	case interop.KindDuration:
		return interop.DurationValue(scaleDuration(v.Duration, rng))
	case interop.KindTime:
		return interop.TimeValue(randomizeTimeOfDay(v.Time, rng))
	case interop.KindQuantity:
		q := v.Quantity
		q.Magnitude = scaleFloat(q.Magnitude, rng)
		return interop.Value{Kind: interop.KindQuantity, Quantity: q}
	case interop.KindEnum:
		return interop.EnumValue(randomEnumMember(v.Enum, rng))
	default:
		return v
	}
}

func scaleInt32(n int32, rng *rand.Rand) int32 {
	switch rng.Intn(3) {
	case 0:
		return n / 2
	case 1:
		return n * 2
	default:
		return -n
	}
}

func scaleInt64(n int64, rng *rand.Rand) int64 {
	switch rng.Intn(3) {
	case 0:
		return n / 2
	case 1:
		return n * 2
	default:
		return -n
	}
}

func scaleFloat(f float64, rng *rand.Rand) float64 {
	switch rng.Intn(4) {
	case 0:
		return f / 2
	case 1:
		return f * 2
	case 2:
		return -f
	default:
		return rng.NormFloat64() * 1000
	}
}

func scaleDuration(d time.Duration, rng *rand.Rand) time.Duration {
	switch rng.Intn(3) {
	case 0:
		return d / 2
	case 1:
		return d * 2
	default:
		return -d
	}
}

func randomizeWithinYears(t time.Time, rng *rand.Rand) time.Time {
	const tenYears = 10 * 365 * 24 * time.Hour
	offset := time.Duration(rng.Int63n(int64(2*tenYears))) - tenYears
	return t.Add(offset)
}

func randomizeTimeOfDay(d time.Duration, rng *rand.Rand) time.Duration {
	return time.Duration(rng.Int63n(int64(24 * time.Hour)))
}

func randomEnumMember(current string, rng *rand.Rand) string {
	others := make([]string, 0, len(enumVocabulary))
	for _, v := range enumVocabulary {
		if v != current {
			others = append(others, v)
		}
	}
	if len(others) == 0 {
		return current
	}
	return others[rng.Intn(len(others))]
}

// perturbXMLStructure implements the non-interoperable branch of the
// XML row: halve/double/randomize element and attribute local names, or
// skip whole elements. Namespaces are not mangled; they are dropped from
// the output. End tags always match their start tags, but attribute
// names are mangled independently, so two attributes can end up with
// the same name, and skipping the root element leaves an empty payload.
func perturbXMLStructure(payload []byte, rng *rand.Rand) []byte {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	var b strings.Builder
	var nameStack []string

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return payload
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rng.Float64() < skipSubtreeProbability {
				_ = decoder.Skip()
				continue
			}
			name := mangleXMLName(t.Name.Local, rng)
			nameStack = append(nameStack, name)
			b.WriteString("<")
			b.WriteString(name)
			for _, a := range t.Attr {
				b.WriteString(" ")
				b.WriteString(mangleXMLName(a.Name.Local, rng))
				b.WriteString(`="`)
				xml.EscapeText(&b, []byte(a.Value)) //nolint:errcheck
				b.WriteString(`"`)
			}
			b.WriteString(">")
		case xml.EndElement:
			if len(nameStack) == 0 {
				continue
			}
			name := nameStack[len(nameStack)-1]
			nameStack = nameStack[:len(nameStack)-1]
			b.WriteString("</")
			b.WriteString(name)
			b.WriteString(">")
		case xml.CharData:
			xml.EscapeText(&b, t) //nolint:errcheck
		}
	}
	return []byte(b.String())
}

func mangleXMLName(name string, rng *rand.Rand) string {
	switch rng.Intn(4) {
	case 0:
		if len(name) > 1 {
			return name[:len(name)/2]
		}
		return name
	case 1:
		return name + name
	case 2:
		return randomKey(rng)
	default:
		return name
	}
}
