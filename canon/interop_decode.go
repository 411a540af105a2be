// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package canon

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hardenmqtt/hardenmqtt/interop"
)

// DecodeInteroperable parses a canonical interoperable payload
// (signed or unsigned) into its ordered field sequence, without the
// signature handling StripSignature applies. The troll mutator uses
// this to detect and field-wise perturb interoperable documents instead
// of falling back to generic XML structural fuzzing.
func DecodeInteroperable(payload []byte) ([]interop.Field, error) {
	return decodeFields(payload)
}

// EncodeFieldsUnchecked renders fields without the ValidateInput check
// InteroperableBytes applies. The troll mutator re-encodes documents
// that already carry a reserved Signature field (it mutates received,
// possibly-signed traffic, not fresh input), so it cannot go through
// the validating entry point.
func EncodeFieldsUnchecked(fields []interop.Field) []byte {
	return encodeFields(fields)
}

// decodeFields parses a canonical interoperable payload into its
// ordered field sequence. Token-based decoding (rather than struct
// unmarshal) is used because each <field> element's value child has a
// tag name that varies with the value's kind -- struct tags can't
// express "one of N possible child elements" while preserving document
// order across a heterogeneous value set.
func decodeFields(payload []byte) ([]interop.Field, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(payload)))

	var fields []interop.Field
	var current *interop.Field

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("canon: xml token: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "fields":
				// root, nothing to do
			case "field":
				f, err := startField(t)
				if err != nil {
					return nil, err
				}
				current = &f
			default:
				if current == nil {
					return nil, fmt.Errorf("canon: value element %q outside <field>", t.Name.Local)
				}
				value, err := startValue(t)
				if err != nil {
					return nil, fmt.Errorf("canon: field %q: %w", current.Name, err)
				}
				current.Value = value
			}
		case xml.EndElement:
			if t.Name.Local == "field" {
				if current == nil {
					return nil, fmt.Errorf("canon: unmatched </field>")
				}
				fields = append(fields, *current)
				current = nil
			}
		}
	}
	return fields, nil
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func startField(t xml.StartElement) (interop.Field, error) {
	var f interop.Field
	f.Thing, _ = attr(t, "thing")
	f.Name, _ = attr(t, "name")
	if typeStr, ok := attr(t, "type"); ok {
		f.Type = interop.ParseFieldType(typeStr)
	}
	if ts, ok := attr(t, "timestamp"); ok {
		parsed, err := time.Parse(timeLayout, ts)
		if err != nil {
			return f, fmt.Errorf("canon: field %q: invalid timestamp %q: %w", f.Name, ts, err)
		}
		f.Timestamp = parsed
	}
	return f, nil
}

func startValue(t xml.StartElement) (interop.Value, error) {
	value, hasValue := attr(t, "value")
	switch t.Name.Local {
	case "boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid boolean %q: %w", value, err)
		}
		return interop.BoolValue(b), nil
	case "int":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid int %q: %w", value, err)
		}
		return interop.Int32Value(int32(n)), nil
	case "long":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid long %q: %w", value, err)
		}
		return interop.Int64Value(n), nil
	case "string":
		return interop.StringValue(value), nil
	case "date":
		d, err := time.Parse("2006-01-02", value)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid date %q: %w", value, err)
		}
		return interop.DateValue(d), nil
	case "dateTime":
		d, err := time.Parse(timeLayout, value)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid dateTime %q: %w", value, err)
		}
		return interop.DateTimeValue(d), nil
	case "duration":
		d, err := parseISODuration(value)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		return interop.DurationValue(d), nil
	case "time":
		d, err := parseTimeOfDay(value)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid time %q: %w", value, err)
		}
		return interop.TimeValue(d), nil
	case "enum":
		return interop.EnumValue(value), nil
	case "quantity":
		magnitude, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return interop.Value{}, fmt.Errorf("invalid quantity %q: %w", value, err)
		}
		decimalsStr, _ := attr(t, "decimals")
		decimals, _ := strconv.Atoi(decimalsStr)
		unit, _ := attr(t, "unit")
		return interop.QuantityValue(magnitude, decimals, unit), nil
	default:
		if !hasValue {
			return interop.Value{}, fmt.Errorf("unrecognized value element %q", t.Name.Local)
		}
		return interop.Value{}, fmt.Errorf("unrecognized value element %q", t.Name.Local)
	}
}

// parseISODuration parses the signed PTnHnMnS form this package emits.
// A day (nD) component is not accepted.
func parseISODuration(s string) (time.Duration, error) {
	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}
	if !strings.HasPrefix(s, "PT") {
		return 0, fmt.Errorf("missing PT prefix")
	}
	s = s[2:]
	var total time.Duration
	number := strings.Builder{}
	for _, r := range s {
		switch r {
		case 'H':
			n, err := strconv.ParseInt(number.String(), 10, 64)
			if err != nil {
				return 0, err
			}
			total += time.Duration(n) * time.Hour
			number.Reset()
		case 'M':
			n, err := strconv.ParseInt(number.String(), 10, 64)
			if err != nil {
				return 0, err
			}
			total += time.Duration(n) * time.Minute
			number.Reset()
		case 'S':
			n, err := strconv.ParseFloat(number.String(), 64)
			if err != nil {
				return 0, err
			}
			total += time.Duration(n * float64(time.Second))
			number.Reset()
		default:
			number.WriteRune(r)
		}
	}
	return sign * total, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS")
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, nil
}
