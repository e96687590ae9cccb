// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package record

import "fmt"

// Normalize converts a payload into a batch conforming to schema. A nil
// schema means first-ever write: the schema is inferred from the payload and
// attached to the returned batch. A non-nil schema is the dataset's frozen
// record type; payloads that do not convert exactly fail
// ErrIncompatibleSchema (int64 values widen into float64 fields, nothing
// else coerces).
//
// An empty payload returns an empty batch before any inference or schema
// checking; callers treat it as a complete no-op.
func Normalize(p Payload, schema *Schema) (*Batch, error) {
	if p.Empty() {
		return &Batch{}, nil
	}

	switch p.form {
	case formArray:
		return normalizeArray(p, schema)
	case formFields:
		return normalizeFields(p, schema)
	default:
		return &Batch{}, nil
	}
}

func normalizeArray(p Payload, schema *Schema) (*Batch, error) {
	if schema == nil {
		inferred := &Schema{Elem: p.arr.Kind, Shape: p.arr.Shape}
		return &Batch{Schema: inferred, Rows: p.rows, Cols: []Column{p.arr}}, nil
	}

	if schema.Compound() {
		return nil, fmt.Errorf("plain array payload for compound dataset: %w", ErrIncompatibleSchema)
	}
	col, err := fitColumn(p.arr, schema.Elem, schema.Shape, "")
	if err != nil {
		return nil, err
	}
	return &Batch{Schema: schema, Rows: p.rows, Cols: []Column{col}}, nil
}

func normalizeFields(p Payload, schema *Schema) (*Batch, error) {
	if schema == nil {
		return inferFields(p)
	}

	if !schema.Compound() {
		return nil, fmt.Errorf("named fields payload for plain dataset: %w", ErrIncompatibleSchema)
	}

	// Pack payload columns into the frozen field order. Payload fields the
	// schema does not declare are ignored.
	cols := make([]Column, len(schema.Fields))
	for i, f := range schema.Fields {
		src, ok := p.fieldByName(f.Name)
		if !ok {
			return nil, fmt.Errorf("payload missing field %q: %w", f.Name, ErrIncompatibleSchema)
		}
		col, err := fitColumn(src, f.Kind, f.Shape, f.Name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return &Batch{Schema: schema, Rows: p.rows, Cols: cols}, nil
}

func inferFields(p Payload) (*Batch, error) {
	fields := make([]Field, len(p.fields))
	cols := make([]Column, len(p.fields))
	seen := make(map[string]bool, len(p.fields))
	for i, nc := range p.fields {
		if seen[nc.name] {
			return nil, fmt.Errorf("duplicate field %q: %w", nc.name, ErrShapeMismatch)
		}
		seen[nc.name] = true
		fields[i] = Field{Name: nc.name, Kind: nc.col.Kind, Shape: nc.col.Shape}
		cols[i] = nc.col
	}
	return &Batch{Schema: &Schema{Fields: fields}, Rows: p.rows, Cols: cols}, nil
}

func (p *Payload) fieldByName(name string) (Column, bool) {
	for _, nc := range p.fields {
		if nc.name == name {
			return nc.col, true
		}
	}
	return Column{}, false
}

// fitColumn checks one column against a frozen (kind, shape) and applies the
// single permitted widening, int64 -> float64.
func fitColumn(col Column, kind Kind, shape []int, name string) (Column, error) {
	label := "array"
	if name != "" {
		label = fmt.Sprintf("field %q", name)
	}

	if !shapeEqual(col.Shape, shape) {
		return Column{}, fmt.Errorf("%s shape %v, dataset expects %v: %w",
			label, col.Shape, shape, ErrIncompatibleSchema)
	}
	if col.Kind == kind {
		return col, nil
	}
	if col.Kind == KindInt64 && kind == KindFloat64 {
		floats := make([]float64, len(col.Ints))
		for i, v := range col.Ints {
			floats[i] = float64(v)
		}
		return Column{Kind: KindFloat64, Shape: col.Shape, Floats: floats}, nil
	}
	return Column{}, fmt.Errorf("%s kind %s, dataset expects %s: %w",
		label, col.Kind, kind, ErrIncompatibleSchema)
}
