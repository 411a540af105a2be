// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

// Package sensor holds the domain object a sensor device publishes.
// The core treats it opaquely: it only ever flows through the
// canonical encoder on its way to a wire form.
package sensor

import (
	"fmt"
	"time"

	"github.com/hardenmqtt/hardenmqtt/interop"
)

// Field names the interoperable encoding uses for each scalar below;
// each is also the unstructured-topic field segment.
const (
	FieldTemperature = "Temperature"
	FieldHumidity    = "Humidity"
	FieldPressure    = "Pressure"
	FieldName        = "Name"
	FieldID          = "Id"
	FieldCountry     = "Country"
	FieldTimeZone    = "TimeZone"
)

// Reading is a snapshot of whatever a sensor device measured. Every
// scalar is optional -- a reading might report only temperature, or
// temperature and humidity, or none at all if the device is purely an
// identity beacon.
type Reading struct {
	Temperature *float64 // degrees Celsius
	Humidity    *float64 // percent relative humidity
	Pressure    *float64 // hectopascals

	Readout   time.Time // when the measurement was taken
	Timestamp time.Time // when this Reading was assembled for publication

	Name      string
	ID        string
	Country   string
	TimeZone  string
}

// UnstructuredField is one (name, string-with-unit) pair for the
// per-field unstructured publish path.
type UnstructuredField struct {
	Name  string
	Value string
}

// UnstructuredFields renders each populated field to its string form
// with a unit suffix where applicable, in a fixed order: this is the
// plain per-field publish path, ahead of the signed/encrypted
// interoperable forms built from ToFields.
func (r Reading) UnstructuredFields() []UnstructuredField {
	var out []UnstructuredField
	if r.Temperature != nil {
		out = append(out, UnstructuredField{FieldTemperature, fmt.Sprintf("%g°C", *r.Temperature)})
	}
	if r.Humidity != nil {
		out = append(out, UnstructuredField{FieldHumidity, fmt.Sprintf("%g%%RH", *r.Humidity)})
	}
	if r.Pressure != nil {
		out = append(out, UnstructuredField{FieldPressure, fmt.Sprintf("%ghPa", *r.Pressure)})
	}
	if r.Name != "" {
		out = append(out, UnstructuredField{FieldName, r.Name})
	}
	if r.ID != "" {
		out = append(out, UnstructuredField{FieldID, r.ID})
	}
	if r.Country != "" {
		out = append(out, UnstructuredField{FieldCountry, r.Country})
	}
	if r.TimeZone != "" {
		out = append(out, UnstructuredField{FieldTimeZone, r.TimeZone})
	}
	return out
}

// ToFields renders the reading to the interoperable field model, in the
// same fixed order UnstructuredFields uses -- deterministic order is
// what makes the interoperable canonicalization bit-exact: two callers
// given the same Reading must produce identical bytes to sign the same
// signature. thing is the InteroperableField "thing reference" attribute; devices
// that don't model sub-things pass their own device ID.
func (r Reading) ToFields(thing string) []interop.Field {
	var fields []interop.Field
	if r.Temperature != nil {
		fields = append(fields, quantityField(thing, r.Readout, FieldTemperature, *r.Temperature, 1, "°C"))
	}
	if r.Humidity != nil {
		fields = append(fields, quantityField(thing, r.Readout, FieldHumidity, *r.Humidity, 1, "%RH"))
	}
	if r.Pressure != nil {
		fields = append(fields, quantityField(thing, r.Readout, FieldPressure, *r.Pressure, 2, "hPa"))
	}
	if r.Name != "" {
		fields = append(fields, identityField(thing, FieldName, r.Name))
	}
	if r.ID != "" {
		fields = append(fields, identityField(thing, FieldID, r.ID))
	}
	if r.Country != "" {
		fields = append(fields, identityField(thing, FieldCountry, r.Country))
	}
	if r.TimeZone != "" {
		fields = append(fields, identityField(thing, FieldTimeZone, r.TimeZone))
	}
	return fields
}

func quantityField(thing string, at time.Time, name string, magnitude float64, decimals int, unit string) interop.Field {
	return interop.Field{
		Thing:     thing,
		Timestamp: at,
		Name:      name,
		Value:     interop.QuantityValue(magnitude, decimals, unit),
		Type:      interop.Momentary,
		QoS:       interop.AutomaticReadout,
	}
}

func identityField(thing, name, value string) interop.Field {
	return interop.Field{
		Thing: thing,
		Name:  name,
		Value: interop.StringValue(value),
		Type:  interop.Identity,
		QoS:   interop.AutomaticReadout,
	}
}
