// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package troll implements the adversarial mutator: it classifies each
// inbound MQTT payload by value type, applies a type-specific
// perturbation at a tunable intensity, and republishes the result back
// to the same topic, while suppressing feedback on its own emissions
// via a content-digest cache.
package troll

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies the value-type classification the cascade below
// assigns to a payload. The cascade is order-sensitive: a payload that
// would parse as more than one kind is classified as the first kind in
// this list that accepts it.
type Kind int

const (
	KindBlob Kind = iota
	KindInt64
	KindFloat
	KindDuration
	KindDateTime
	KindURI
	KindJSONObject
	KindJSONArray
	KindXML
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "BLOB"
	case KindInt64:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindDuration:
		return "Duration"
	case KindDateTime:
		return "DateTime"
	case KindURI:
		return "URI"
	case KindJSONObject:
		return "JSONObject"
	case KindJSONArray:
		return "JSONArray"
	case KindXML:
		return "XML"
	case KindString:
		return "String"
	default:
		return "Unknown"
	}
}

// MaxClassifiablePayloadBytes is the size above which a payload is
// classified BLOB without further inspection, so the cascade below
// never runs a parser over an arbitrarily large message.
const MaxClassifiablePayloadBytes = 65536

// isoDurationPattern matches signed ISO-8601 durations of the form
// PnDTnHnMnS, a superset of the PTnHnMnS form the canonical encoder
// emits and accepts.
var isoDurationPattern = regexp.MustCompile(`^-?P(\d+D)?(T(\d+H)?(\d+M)?(\d+(\.\d+)?S)?)?$`)

// Classifier implements the ordered classification cascade.
type Classifier struct{}

// Classify assigns a Kind to payload, trying each candidate type in
// order: size guard, then int64, float, duration, date-time, absolute
// URI, JSON object, JSON array, XML document, else string.
func (Classifier) Classify(payload []byte) Kind {
	return Classify(payload)
}

// Classify is the free-function form of Classifier.Classify.
func Classify(payload []byte) Kind {
	if len(payload) > MaxClassifiablePayloadBytes {
		return KindBlob
	}
	if !utf8.Valid(payload) {
		return KindBlob
	}
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return KindString
	}

	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return KindInt64
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return KindFloat
	}
	if isISODuration(s) {
		return KindDuration
	}
	if isDateTime(s) {
		return KindDateTime
	}
	if isAbsoluteURI(s) {
		return KindURI
	}
	if looksLikeJSONObject(s) {
		return KindJSONObject
	}
	if looksLikeJSONArray(s) {
		return KindJSONArray
	}
	if isWellFormedXML(s) {
		return KindXML
	}
	return KindString
}

func isISODuration(s string) bool {
	if !isoDurationPattern.MatchString(s) {
		return false
	}
	// Reject the bare "P" / "PT" forms with no numeric component -- the
	// pattern's groups are all optional so they'd otherwise match.
	return strings.ContainsAny(s, "0123456789")
}

// dateTimeLayouts are tried in order; a match on any classifies the
// payload as a date-time, covering both locale-free ISO-8601 and the
// RFC3339 rendering the canonical encoder produces.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func isDateTime(s string) bool {
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

func looksLikeJSONObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

func looksLikeJSONArray(s string) bool {
	if !strings.HasPrefix(s, "[") {
		return false
	}
	var v []json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

func isWellFormedXML(s string) bool {
	if !strings.HasPrefix(s, "<") {
		return false
	}
	decoder := xml.NewDecoder(strings.NewReader(s))
	sawElement := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	return sawElement
}
