// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cryodaq/cryodaq/internal/record"
)

// Block layout: u32 little-endian row count, then one payload per column in
// schema order. Numerics are fixed-width little-endian, bools one byte per
// element, strings u32-length-prefixed. Blocks are immutable once written.

// encodeBlock serializes a non-empty batch into one block value.
func encodeBlock(b *record.Batch) []byte {
	buf := make([]byte, 4, 4+blockDataSize(b))
	binary.LittleEndian.PutUint32(buf, uint32(b.Rows))
	for i := range b.Cols {
		buf = appendColumn(buf, &b.Cols[i])
	}
	return buf
}

func blockDataSize(b *record.Batch) int {
	total := 0
	for i := range b.Cols {
		c := &b.Cols[i]
		n := b.Rows * elemsPerRow(c.Shape)
		switch c.Kind {
		case record.KindFloat64, record.KindInt64:
			total += 8 * n
		case record.KindBool:
			total += n
		case record.KindString:
			total += 4 * n
			for _, s := range c.Strings {
				total += len(s)
			}
		}
	}
	return total
}

func appendColumn(buf []byte, c *record.Column) []byte {
	switch c.Kind {
	case record.KindFloat64:
		for _, v := range c.Floats {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	case record.KindInt64:
		for _, v := range c.Ints {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	case record.KindBool:
		for _, v := range c.Bools {
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	case record.KindString:
		for _, s := range c.Strings {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		}
	}
	return buf
}

// decodeBlock deserializes one block value into a batch conforming to the
// dataset schema.
func decodeBlock(schema *record.Schema, data []byte) (*record.Batch, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("block header truncated: %d bytes", len(data))
	}
	rows := int(binary.LittleEndian.Uint32(data))
	data = data[4:]

	cols := columnsFor(schema)
	for i := range cols {
		rest, err := readColumn(&cols[i], rows, data)
		if err != nil {
			return nil, err
		}
		data = rest
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("block has %d trailing bytes", len(data))
	}
	return &record.Batch{Schema: schema, Rows: rows, Cols: cols}, nil
}

// columnsFor returns empty columns in schema order with kind and shape set.
func columnsFor(schema *record.Schema) []record.Column {
	if schema.Compound() {
		cols := make([]record.Column, len(schema.Fields))
		for i, f := range schema.Fields {
			cols[i] = record.Column{Kind: f.Kind, Shape: f.Shape}
		}
		return cols
	}
	return []record.Column{{Kind: schema.Elem, Shape: schema.Shape}}
}

func readColumn(c *record.Column, rows int, data []byte) ([]byte, error) {
	n := rows * elemsPerRow(c.Shape)
	switch c.Kind {
	case record.KindFloat64:
		if len(data) < 8*n {
			return nil, fmt.Errorf("float column truncated: want %d bytes, have %d", 8*n, len(data))
		}
		c.Floats = make([]float64, n)
		for i := range c.Floats {
			c.Floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}
		return data[8*n:], nil
	case record.KindInt64:
		if len(data) < 8*n {
			return nil, fmt.Errorf("int column truncated: want %d bytes, have %d", 8*n, len(data))
		}
		c.Ints = make([]int64, n)
		for i := range c.Ints {
			c.Ints[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
		}
		return data[8*n:], nil
	case record.KindBool:
		if len(data) < n {
			return nil, fmt.Errorf("bool column truncated: want %d bytes, have %d", n, len(data))
		}
		c.Bools = make([]bool, n)
		for i := range c.Bools {
			c.Bools[i] = data[i] != 0
		}
		return data[n:], nil
	case record.KindString:
		c.Strings = make([]string, n)
		for i := range c.Strings {
			if len(data) < 4 {
				return nil, fmt.Errorf("string length truncated at element %d", i)
			}
			l := int(binary.LittleEndian.Uint32(data))
			data = data[4:]
			if len(data) < l {
				return nil, fmt.Errorf("string body truncated at element %d: want %d bytes, have %d", i, l, len(data))
			}
			c.Strings[i] = string(data[:l])
			data = data[l:]
		}
		return data, nil
	default:
		return nil, fmt.Errorf("column kind %s not decodable", c.Kind)
	}
}

// elemsPerRow is the scalar element count of one row for a sub-shape; an
// empty shape is a scalar.
func elemsPerRow(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
