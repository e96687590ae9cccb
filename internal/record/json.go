// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package record

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// FromJSON classifies a raw JSON document into a Payload.
//
// A top-level array is a plain homogeneous batch; its shape must be uniform
// (ragged arrays fail ErrShapeMismatch). A top-level object maps field names
// to values: a JSON scalar is a length-1 column, a flat array is a length-N
// column, and an array of arrays is a length-N column of fixed-shape array
// rows. Field order in the document is preserved and becomes schema order on
// first write. Numbers are int64 when every sample is integral, float64
// otherwise. The forms [] and {} are the empty payload.
func FromJSON(data []byte) (Payload, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return Payload{}, fmt.Errorf("empty payload document: %w", ErrShapeMismatch)
	}

	switch trimmed[0] {
	case '[':
		return arrayPayloadFromJSON(trimmed)
	case '{':
		return fieldsPayloadFromJSON(trimmed)
	default:
		return Payload{}, fmt.Errorf("payload must be a JSON array or object: %w", ErrShapeMismatch)
	}
}

func arrayPayloadFromJSON(data []byte) (Payload, error) {
	var val interface{}
	if err := decodeNumbers(data, &val); err != nil {
		return Payload{}, fmt.Errorf("decode array payload: %w", err)
	}

	col, rows, err := classifyArray(val)
	if err != nil {
		return Payload{}, err
	}
	if rows == 0 {
		return Payload{}, nil
	}
	return Payload{form: formArray, rows: rows, arr: col}, nil
}

func fieldsPayloadFromJSON(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	// Consume the opening brace, then walk keys in document order so the
	// inferred schema preserves the writer's field order.
	if _, err := dec.Token(); err != nil {
		return Payload{}, fmt.Errorf("decode object payload: %w", err)
	}

	var fields []ColumnField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Payload{}, fmt.Errorf("decode object payload: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Payload{}, fmt.Errorf("decode object payload: non-string key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Payload{}, fmt.Errorf("decode field %q: %w", key, err)
		}

		col, err := classifyFieldValue(key, raw)
		if err != nil {
			return Payload{}, err
		}
		fields = append(fields, ColumnField{Name: key, Column: col})
	}

	if len(fields) == 0 {
		return Payload{}, nil
	}
	return FromColumns(fields...)
}

// classifyFieldValue converts one object field's raw value into a column.
func classifyFieldValue(name string, raw json.RawMessage) (Column, error) {
	var val interface{}
	if err := decodeNumbers(raw, &val); err != nil {
		return Column{}, fmt.Errorf("decode field %q: %w", name, err)
	}

	switch v := val.(type) {
	case json.Number, string, bool:
		return scalarColumn(v)
	case []interface{}:
		col, _, err := classifyArray(val)
		if err != nil {
			return Column{}, fmt.Errorf("field %q: %w", name, err)
		}
		return col, nil
	default:
		return Column{}, fmt.Errorf("field %q holds unsupported value %T: %w", name, val, ErrShapeMismatch)
	}
}

func scalarColumn(v interface{}) (Column, error) {
	switch s := v.(type) {
	case json.Number:
		if i, err := s.Int64(); err == nil {
			return IntColumn(i), nil
		}
		f, err := s.Float64()
		if err != nil {
			return Column{}, fmt.Errorf("number %q: %w", s.String(), err)
		}
		return FloatColumn(f), nil
	case string:
		return StringColumn(s), nil
	case bool:
		return Column{Kind: KindBool, Bools: []bool{s}}, nil
	default:
		return Column{}, fmt.Errorf("unsupported scalar %T: %w", v, ErrShapeMismatch)
	}
}

// classifyArray turns a decoded nested JSON array into a column plus its row
// count. The first axis is the row axis; remaining axes become the fixed
// per-row shape.
func classifyArray(val interface{}) (Column, int, error) {
	shape := shapeOf(val)
	if len(shape) == 0 {
		return Column{}, 0, fmt.Errorf("value is not an array: %w", ErrShapeMismatch)
	}
	rows := shape[0]
	if shapeSize(shape) == 0 {
		return Column{}, 0, nil
	}

	leaves := make([]interface{}, 0, shapeSize(shape))
	if err := flatten(val, shape, &leaves); err != nil {
		return Column{}, 0, err
	}

	col, err := columnFromLeaves(leaves, shape[1:])
	if err != nil {
		return Column{}, 0, err
	}
	return col, rows, nil
}

// shapeOf derives the nested array shape from the first element at each
// level. flatten verifies the rest of the document against it.
func shapeOf(v interface{}) []int {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	if len(arr) == 0 {
		return []int{0}
	}
	return append([]int{len(arr)}, shapeOf(arr[0])...)
}

func flatten(v interface{}, shape []int, leaves *[]interface{}) error {
	if len(shape) == 0 {
		if _, ok := v.([]interface{}); ok {
			return fmt.Errorf("ragged array nesting: %w", ErrShapeMismatch)
		}
		*leaves = append(*leaves, v)
		return nil
	}

	arr, ok := v.([]interface{})
	if !ok || len(arr) != shape[0] {
		return fmt.Errorf("ragged array: expected %d elements: %w", shape[0], ErrShapeMismatch)
	}
	for _, elem := range arr {
		if err := flatten(elem, shape[1:], leaves); err != nil {
			return err
		}
	}
	return nil
}

// columnFromLeaves unifies leaf types into one column kind. Numbers widen
// to float64 when any sample is non-integral; strings and bools never mix
// with numbers or each other.
func columnFromLeaves(leaves []interface{}, shape []int) (Column, error) {
	var hasFloat, hasInt, hasBool, hasString bool
	for _, leaf := range leaves {
		switch n := leaf.(type) {
		case json.Number:
			if _, err := n.Int64(); err == nil {
				hasInt = true
			} else {
				hasFloat = true
			}
		case bool:
			hasBool = true
		case string:
			hasString = true
		default:
			return Column{}, fmt.Errorf("unsupported array element %T: %w", leaf, ErrShapeMismatch)
		}
	}

	numeric := hasFloat || hasInt
	if (numeric && (hasBool || hasString)) || (hasBool && hasString) {
		return Column{}, fmt.Errorf("mixed element types in array: %w", ErrShapeMismatch)
	}

	switch {
	case hasFloat:
		col := Column{Kind: KindFloat64, Shape: shape, Floats: make([]float64, len(leaves))}
		for i, leaf := range leaves {
			f, err := leaf.(json.Number).Float64()
			if err != nil {
				return Column{}, fmt.Errorf("number %v: %w", leaf, err)
			}
			col.Floats[i] = f
		}
		return col, nil
	case hasInt:
		col := Column{Kind: KindInt64, Shape: shape, Ints: make([]int64, len(leaves))}
		for i, leaf := range leaves {
			n, err := leaf.(json.Number).Int64()
			if err != nil {
				return Column{}, fmt.Errorf("number %v: %w", leaf, err)
			}
			col.Ints[i] = n
		}
		return col, nil
	case hasBool:
		col := Column{Kind: KindBool, Shape: shape, Bools: make([]bool, len(leaves))}
		for i, leaf := range leaves {
			col.Bools[i] = leaf.(bool)
		}
		return col, nil
	case hasString:
		col := Column{Kind: KindString, Shape: shape, Strings: make([]string, len(leaves))}
		for i, leaf := range leaves {
			col.Strings[i] = leaf.(string)
		}
		return col, nil
	default:
		return Column{}, fmt.Errorf("empty array column: %w", ErrShapeMismatch)
	}
}

func decodeNumbers(data []byte, out *interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// EncodeJSON renders the payload in the wire form FromJSON accepts: a
// nested array for plain payloads, an object of field columns otherwise.
// Field order is preserved so the document round-trips to the same schema.
// Remote clients use this to ship payloads to the append endpoint.
func (p *Payload) EncodeJSON() ([]byte, error) {
	if p.Empty() {
		return []byte("{}"), nil
	}

	if p.form == formArray {
		return json.Marshal(p.arr.values())
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nc := range p.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(nc.name)
		if err != nil {
			return nil, fmt.Errorf("encode field name %q: %w", nc.name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(nc.col.values())
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", nc.name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
