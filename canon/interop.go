// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package canon

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hardenmqtt/hardenmqtt/internal/wire"
	"github.com/hardenmqtt/hardenmqtt/interop"
)

// timeLayout is the fixed RFC3339 rendering used for every timestamp
// attribute. Nanoseconds are dropped so the canonical form is stable
// across platforms that differ in sub-second clock resolution.
const timeLayout = "2006-01-02T15:04:05Z"

// InteroperableBytes renders fields into the canonical interoperable
// XML payload, in exactly the input order, with quantity magnitudes
// rounded to their declared decimal count. The output contains no
// Signature field; ValidateInput rejects an input sequence that already
// has one.
func InteroperableBytes(fields []interop.Field) ([]byte, error) {
	if err := interop.ValidateInput(fields); err != nil {
		return nil, err
	}
	return encodeFields(fields), nil
}

// BuildSignedPayload renders fields (which must not contain a Signature
// field) with a trailing Computed Signature field whose value is
// signatureBase64Url, timestamped at signedAt. This is the payload
// publishers sign: the bytes from InteroperableBytes are what gets
// signed, and the bytes from BuildSignedPayload are what gets
// published.
func BuildSignedPayload(fields []interop.Field, signatureBase64Url string, signedAt time.Time) ([]byte, error) {
	if err := interop.ValidateInput(fields); err != nil {
		return nil, err
	}
	signed := make([]interop.Field, 0, len(fields)+1)
	signed = append(signed, fields...)
	signed = append(signed, interop.Field{
		Name:      interop.ReservedSignatureField,
		Type:      interop.Computed,
		QoS:       interop.AutomaticReadout,
		Timestamp: signedAt,
		Value:     interop.StringValue(signatureBase64Url),
	})
	return encodeFields(signed), nil
}

// MaxSignatureBase64UrlLength is the structural guard on the Signature
// field value: signatures longer than this are rejected without being
// verified. An Ed25519 signature base64url-encodes to 86 characters;
// 100 leaves headroom without letting an attacker-supplied field grow
// unbounded.
const MaxSignatureBase64UrlLength = 100

// StripSignature parses a signed interoperable payload, extracts the
// single Signature field (rejecting 0 or 2+ occurrences), and returns
// the remaining fields in document order plus the decoded signature
// bytes. It does not verify the signature -- callers combine this with
// the signable bytes of the stripped fields and an Ed25519 verification
// step.
func StripSignature(payload []byte) (fields []interop.Field, signature []byte, err error) {
	all, err := decodeFields(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("canon: parsing interoperable payload: %w", err)
	}

	var signatureField *interop.Field
	stripped := make([]interop.Field, 0, len(all))
	for i := range all {
		if all[i].Name == interop.ReservedSignatureField {
			if signatureField != nil {
				return nil, nil, fmt.Errorf("canon: payload contains multiple Signature fields")
			}
			signatureField = &all[i]
			continue
		}
		stripped = append(stripped, all[i])
	}
	if signatureField == nil {
		return nil, nil, fmt.Errorf("canon: payload contains no Signature field")
	}
	if signatureField.Value.Kind != interop.KindString {
		return nil, nil, fmt.Errorf("canon: Signature field is not a string value")
	}
	encoded := signatureField.Value.Str
	if err := wire.CheckSize("canon: signature", len(encoded), MaxSignatureBase64UrlLength, "base64url character"); err != nil {
		return nil, nil, err
	}
	decoded, err := wire.DecodeBase64Url(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("canon: decoding signature: %w", err)
	}
	return stripped, decoded, nil
}

// --- encoding ---

func encodeFields(fields []interop.Field) []byte {
	var b strings.Builder
	b.WriteString("<fields>")
	for _, f := range fields {
		encodeField(&b, f)
	}
	b.WriteString("</fields>")
	return []byte(b.String())
}

func encodeField(b *strings.Builder, f interop.Field) {
	b.WriteString("<field")
	writeAttr(b, "thing", f.Thing)
	if !f.Timestamp.IsZero() {
		writeAttr(b, "timestamp", f.Timestamp.UTC().Format(timeLayout))
	}
	writeAttr(b, "name", f.Name)
	writeAttr(b, "type", f.Type.String())
	writeAttr(b, "qos", f.QoS.String())
	b.WriteString(">")
	encodeValue(b, f.Value)
	b.WriteString("</field>")
}

func encodeValue(b *strings.Builder, v interop.Value) {
	switch v.Kind {
	case interop.KindBoolean:
		writeValueElement(b, "boolean", strconv.FormatBool(v.Bool), nil)
	case interop.KindInt32:
		writeValueElement(b, "int", strconv.FormatInt(int64(v.Int32), 10), nil)
	case interop.KindInt64:
		writeValueElement(b, "long", strconv.FormatInt(v.Int64, 10), nil)
	case interop.KindString:
		writeValueElement(b, "string", v.Str, nil)
	case interop.KindDate:
		writeValueElement(b, "date", v.Date.UTC().Format("2006-01-02"), nil)
	case interop.KindDateTime:
		writeValueElement(b, "dateTime", v.DateTime.UTC().Format(timeLayout), nil)
	case interop.KindDuration:
		writeValueElement(b, "duration", formatISODuration(v.Duration), nil)
	case interop.KindTime:
		writeValueElement(b, "time", formatTimeOfDay(v.Time), nil)
	case interop.KindEnum:
		writeValueElement(b, "enum", v.Enum, nil)
	case interop.KindQuantity:
		rounded := roundToDecimals(v.Quantity.Magnitude, v.Quantity.Decimals)
		writeValueElement(b, "quantity", strconv.FormatFloat(rounded, 'f', v.Quantity.Decimals, 64), []xmlAttr{
			{"decimals", strconv.Itoa(v.Quantity.Decimals)},
			{"unit", v.Quantity.Unit},
		})
	}
}

type xmlAttr struct{ name, value string }

func writeValueElement(b *strings.Builder, elem, value string, extra []xmlAttr) {
	b.WriteString("<")
	b.WriteString(elem)
	writeAttr(b, "value", value)
	for _, a := range extra {
		writeAttr(b, a.name, a.value)
	}
	b.WriteString("/>")
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	xml.EscapeText(b, []byte(value)) //nolint:errcheck // strings.Builder never errors
	b.WriteString(`"`)
}

func roundToDecimals(v float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// formatISODuration renders a time.Duration as a signed ISO-8601
// duration of the form PTnHnMnS (hours are not folded into days), which
// is what the decoder expects back.
func formatISODuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := d.Seconds()
	return fmt.Sprintf("%sPT%dH%dM%sS", sign, hours, minutes, strconv.FormatFloat(seconds, 'f', -1, 64))
}

func formatTimeOfDay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
