// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package record

import "fmt"

// Column is a typed columnar value sequence. Exactly one backing slice is
// populated, selected by Kind; its length is rows * shapeSize(Shape).
type Column struct {
	Kind    Kind
	Shape   []int
	Floats  []float64
	Ints    []int64
	Bools   []bool
	Strings []string
}

// Rows returns the number of rows the column holds.
func (c *Column) Rows() int {
	size := shapeSize(c.Shape)
	if size == 0 {
		return 0
	}
	return c.lenBacking() / size
}

func (c *Column) lenBacking() int {
	switch c.Kind {
	case KindFloat64:
		return len(c.Floats)
	case KindInt64:
		return len(c.Ints)
	case KindBool:
		return len(c.Bools)
	case KindString:
		return len(c.Strings)
	default:
		return 0
	}
}

// Slice returns the rows in [lo, hi) as a new column sharing backing memory.
func (c *Column) Slice(lo, hi int) Column {
	size := shapeSize(c.Shape)
	out := Column{Kind: c.Kind, Shape: c.Shape}
	switch c.Kind {
	case KindFloat64:
		out.Floats = c.Floats[lo*size : hi*size]
	case KindInt64:
		out.Ints = c.Ints[lo*size : hi*size]
	case KindBool:
		out.Bools = c.Bools[lo*size : hi*size]
	case KindString:
		out.Strings = c.Strings[lo*size : hi*size]
	}
	return out
}

// appendColumn extends c with the contents of other. Kinds and shapes must
// already have been checked by the caller.
func (c *Column) appendColumn(other *Column) {
	switch c.Kind {
	case KindFloat64:
		c.Floats = append(c.Floats, other.Floats...)
	case KindInt64:
		c.Ints = append(c.Ints, other.Ints...)
	case KindBool:
		c.Bools = append(c.Bools, other.Bools...)
	case KindString:
		c.Strings = append(c.Strings, other.Strings...)
	}
}

// values renders the column as nested JSON-ready values, one entry per row.
func (c *Column) values() []interface{} {
	rows := c.Rows()
	out := make([]interface{}, rows)
	size := shapeSize(c.Shape)
	for i := 0; i < rows; i++ {
		if len(c.Shape) == 0 {
			out[i] = c.scalarAt(i)
			continue
		}
		out[i] = c.nest(i*size, c.Shape)
	}
	return out
}

func (c *Column) scalarAt(i int) interface{} {
	switch c.Kind {
	case KindFloat64:
		return c.Floats[i]
	case KindInt64:
		return c.Ints[i]
	case KindBool:
		return c.Bools[i]
	case KindString:
		return c.Strings[i]
	default:
		return nil
	}
}

// nest builds the nested representation of one row's fixed-shape array
// starting at flat offset off.
func (c *Column) nest(off int, shape []int) interface{} {
	if len(shape) == 0 {
		return c.scalarAt(off)
	}
	inner := shapeSize(shape[1:])
	out := make([]interface{}, shape[0])
	for i := 0; i < shape[0]; i++ {
		out[i] = c.nest(off+i*inner, shape[1:])
	}
	return out
}

// Batch is a normalized, schema-conforming row collection produced by one
// append call. Cols holds one column per schema field in schema order; a
// plain (non-compound) batch holds exactly one column.
type Batch struct {
	Schema *Schema
	Rows   int
	Cols   []Column
}

// Empty reports whether the batch holds no rows. Empty batches are the
// documented no-op: the store must not create nodes, write, or notify.
func (b *Batch) Empty() bool {
	return b == nil || b.Rows == 0
}

// Col returns the column for the named field.
func (b *Batch) Col(name string) (*Column, bool) {
	if b.Schema == nil {
		return nil, false
	}
	i := b.Schema.FieldIndex(name)
	if i < 0 {
		return nil, false
	}
	return &b.Cols[i], true
}

// ColumnValues renders the batch's columns as JSON-ready values keyed by
// field name; a plain batch uses the empty key "".
func (b *Batch) ColumnValues() map[string][]interface{} {
	out := make(map[string][]interface{}, len(b.Cols))
	if b.Schema == nil || !b.Schema.Compound() {
		if len(b.Cols) == 1 {
			out[""] = b.Cols[0].values()
		}
		return out
	}
	for i, f := range b.Schema.Fields {
		out[f.Name] = b.Cols[i].values()
	}
	return out
}

// Append extends b in place with the rows of other, which must conform to
// the same schema. Used by subscribers that accumulate windows locally.
func (b *Batch) Append(other *Batch) error {
	if other.Empty() {
		return nil
	}
	if b.Schema != nil && !b.Schema.Equal(other.Schema) {
		return fmt.Errorf("append batch: %w", ErrIncompatibleSchema)
	}
	if b.Schema == nil {
		b.Schema = other.Schema
		b.Cols = make([]Column, len(other.Cols))
		for i := range other.Cols {
			b.Cols[i] = Column{Kind: other.Cols[i].Kind, Shape: other.Cols[i].Shape}
		}
	}
	for i := range other.Cols {
		b.Cols[i].appendColumn(&other.Cols[i])
	}
	b.Rows += other.Rows
	return nil
}
