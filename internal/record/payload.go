// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package record

import "fmt"

// payloadForm tags the input variant a Payload carries.
type payloadForm uint8

const (
	formEmpty payloadForm = iota
	formArray
	formFields
)

// Payload is the tagged union of append input shapes. Construct one with
// FromArray, FromScalars, FromColumns, or FromJSON; the zero value is the
// empty payload.
type Payload struct {
	form   payloadForm
	rows   int
	arr    Column
	fields []namedColumn
}

type namedColumn struct {
	name string
	col  Column
}

// Empty reports whether the payload carries zero rows.
func (p *Payload) Empty() bool {
	return p.form == formEmpty || p.rows == 0
}

// FromArray builds a plain homogeneous payload from flat float64 values and
// a full shape (rows first). Fails ErrShapeMismatch when the value count
// does not factor into the shape.
func FromArray(values []float64, shape ...int) (Payload, error) {
	if len(shape) == 0 || shape[0] == 0 || len(values) == 0 {
		return Payload{}, nil
	}
	if len(values) != shapeSize(shape) {
		return Payload{}, fmt.Errorf("array of %d values does not fill shape %v: %w",
			len(values), shape, ErrShapeMismatch)
	}
	return Payload{
		form: formArray,
		rows: shape[0],
		arr:  Column{Kind: KindFloat64, Shape: shape[1:], Floats: values},
	}, nil
}

// FromIntArray is FromArray for int64 elements.
func FromIntArray(values []int64, shape ...int) (Payload, error) {
	if len(shape) == 0 || shape[0] == 0 || len(values) == 0 {
		return Payload{}, nil
	}
	if len(values) != shapeSize(shape) {
		return Payload{}, fmt.Errorf("array of %d values does not fill shape %v: %w",
			len(values), shape, ErrShapeMismatch)
	}
	return Payload{
		form: formArray,
		rows: shape[0],
		arr:  Column{Kind: KindInt64, Shape: shape[1:], Ints: values},
	}, nil
}

// Value is one scalar (or fixed-shape array) field value for FromScalars.
type Value struct {
	col Column
}

// Float64Value wraps a float64 scalar.
func Float64Value(v float64) Value {
	return Value{col: Column{Kind: KindFloat64, Floats: []float64{v}}}
}

// Int64Value wraps an int64 scalar.
func Int64Value(v int64) Value {
	return Value{col: Column{Kind: KindInt64, Ints: []int64{v}}}
}

// BoolValue wraps a bool scalar.
func BoolValue(v bool) Value {
	return Value{col: Column{Kind: KindBool, Bools: []bool{v}}}
}

// StringValue wraps a string scalar.
func StringValue(v string) Value {
	return Value{col: Column{Kind: KindString, Strings: []string{v}}}
}

// ArrayValue wraps one fixed-shape float64 array value (a single row whose
// field holds an array).
func ArrayValue(values []float64, shape ...int) (Value, error) {
	if len(values) != shapeSize(shape) || len(shape) == 0 {
		return Value{}, fmt.Errorf("array value of %d elements does not fill shape %v: %w",
			len(values), shape, ErrShapeMismatch)
	}
	return Value{col: Column{Kind: KindFloat64, Shape: shape, Floats: values}}, nil
}

// ScalarField pairs a field name with a single value. Field order is
// preserved and becomes schema order on first write.
type ScalarField struct {
	Name  string
	Value Value
}

// FromScalars builds a one-row payload from named values.
func FromScalars(fields ...ScalarField) Payload {
	if len(fields) == 0 {
		return Payload{}
	}
	p := Payload{form: formFields, rows: 1, fields: make([]namedColumn, 0, len(fields))}
	for _, f := range fields {
		p.fields = append(p.fields, namedColumn{name: f.Name, col: f.Value.col})
	}
	return p
}

// ColumnField pairs a field name with a column of values. Field order is
// preserved and becomes schema order on first write.
type ColumnField struct {
	Name   string
	Column Column
}

// FromColumns builds a multi-row payload from named equal-length columns.
// Fails ErrShapeMismatch when column lengths differ.
func FromColumns(fields ...ColumnField) (Payload, error) {
	if len(fields) == 0 {
		return Payload{}, nil
	}
	rows := fields[0].Column.Rows()
	p := Payload{form: formFields, rows: rows, fields: make([]namedColumn, 0, len(fields))}
	for _, f := range fields {
		if f.Column.Rows() != rows {
			return Payload{}, fmt.Errorf("column %q has %d rows, expected %d: %w",
				f.Name, f.Column.Rows(), rows, ErrShapeMismatch)
		}
		p.fields = append(p.fields, namedColumn{name: f.Name, col: f.Column})
	}
	if rows == 0 {
		return Payload{}, nil
	}
	return p, nil
}

// FloatColumn builds a scalar float64 column.
func FloatColumn(values ...float64) Column {
	return Column{Kind: KindFloat64, Floats: values}
}

// IntColumn builds a scalar int64 column.
func IntColumn(values ...int64) Column {
	return Column{Kind: KindInt64, Ints: values}
}

// StringColumn builds a scalar string column.
func StringColumn(values ...string) Column {
	return Column{Kind: KindString, Strings: values}
}
