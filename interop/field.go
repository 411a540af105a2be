// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package interop defines the interoperable sensor-data field model shared
// by the canonical encoder, the secure telemetry pipeline, and the troll
// mutator. A Field is a tagged union over the value kinds the XMPP-style
// sensor-data payload supports: boolean, int32, int64, string, date,
// datetime, duration, time, quantity, and enum.
//
// Dynamic dispatch over the variants is done by switching on Kind rather
// than by subclassing — the canonical encoder and the troll mutator both
// switch on the same tag.
package interop

import (
	"fmt"
	"time"
)

// Kind identifies which field of Value is populated.
type Kind int

const (
	KindBoolean Kind = iota
	KindInt32
	KindInt64
	KindString
	KindDate
	KindDateTime
	KindDuration
	KindTime
	KindQuantity
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindDateTime:
		return "dateTime"
	case KindDuration:
		return "duration"
	case KindTime:
		return "time"
	case KindQuantity:
		return "quantity"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// FieldType classifies the semantic role of a field, per the
// sensor-data type taxonomy.
type FieldType int

const (
	Momentary FieldType = iota
	Peak
	Status
	Identity
	Computed
)

func (t FieldType) String() string {
	switch t {
	case Momentary:
		return "Momentary"
	case Peak:
		return "Peak"
	case Status:
		return "Status"
	case Identity:
		return "Identity"
	case Computed:
		return "Computed"
	default:
		return "Unknown"
	}
}

// ParseFieldType parses the XML attribute form of a FieldType. Unknown
// values fall back to Momentary -- a malformed inbound document should
// never panic the receiver.
func ParseFieldType(s string) FieldType {
	switch s {
	case "Peak":
		return Peak
	case "Status":
		return Status
	case "Identity":
		return Identity
	case "Computed":
		return Computed
	default:
		return Momentary
	}
}

// QoS is the quality-of-service tag attached to every field. The
// original protocol defines several; this implementation only ever
// produces and expects AutomaticReadout.
type QoS int

const AutomaticReadout QoS = 0

func (QoS) String() string { return "AutomaticReadout" }

// Quantity is a measured value with an explicit decimal count and unit,
// e.g. 21.5 °C rendered with one decimal.
type Quantity struct {
	Magnitude float64
	Decimals  int
	Unit      string
}

// Value holds exactly one populated variant, selected by Kind.
type Value struct {
	Kind Kind

	Bool     bool
	Int32    int32
	Int64    int64
	Str      string
	Date     time.Time // date-only; time-of-day components are ignored
	DateTime time.Time
	Duration time.Duration
	Time     time.Duration // time-of-day, offset since midnight
	Quantity Quantity
	Enum     string
}

func BoolValue(v bool) Value         { return Value{Kind: KindBoolean, Bool: v} }
func Int32Value(v int32) Value       { return Value{Kind: KindInt32, Int32: v} }
func Int64Value(v int64) Value       { return Value{Kind: KindInt64, Int64: v} }
func StringValue(v string) Value     { return Value{Kind: KindString, Str: v} }
func DateValue(v time.Time) Value    { return Value{Kind: KindDate, Date: v} }
func DateTimeValue(v time.Time) Value { return Value{Kind: KindDateTime, DateTime: v} }
func DurationValue(v time.Duration) Value { return Value{Kind: KindDuration, Duration: v} }
func TimeValue(v time.Duration) Value { return Value{Kind: KindTime, Time: v} }
func EnumValue(v string) Value       { return Value{Kind: KindEnum, Enum: v} }
func QuantityValue(magnitude float64, decimals int, unit string) Value {
	return Value{Kind: KindQuantity, Quantity: Quantity{Magnitude: magnitude, Decimals: decimals, Unit: unit}}
}

// Field is one typed (name, value) tuple within an interoperable
// sensor-data payload.
//
// Field.Name "Signature" is reserved: it MUST NOT appear in a Field
// slice passed to the canonical encoder for signing. It is appended by
// the telemetry signer after the signable bytes are computed.
type Field struct {
	Thing     string
	Timestamp time.Time
	Name      string
	Value     Value
	Type      FieldType
	QoS       QoS
}

// ReservedSignatureField is the field name the signer appends and the
// verifier strips. No input field sequence may legally contain it.
const ReservedSignatureField = "Signature"

// ValidateInput returns an error if fields contains a reserved
// Signature field: callers must never pass one in, since it is the
// signer's job to append it after the signable bytes are computed.
func ValidateInput(fields []Field) error {
	for _, f := range fields {
		if f.Name == ReservedSignatureField {
			return fmt.Errorf("interop: field sequence may not contain reserved field %q", ReservedSignatureField)
		}
	}
	return nil
}
