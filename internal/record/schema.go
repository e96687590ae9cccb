// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package record

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Kind is the scalar element type of a field or plain dataset.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFloat64
	KindInt64
	KindBool
	KindString
)

var kindNames = map[Kind]string{
	KindFloat64: "float64",
	KindInt64:   "int64",
	KindBool:    "bool",
	KindString:  "string",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its wire name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range kindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", name)
}

// Field is one named column of a compound schema. An empty Shape means the
// field holds scalars; otherwise each row holds a fixed-shape array.
type Field struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Shape []int  `json:"shape,omitempty"`
}

// Schema is the frozen record type of a dataset.
//
// A schema with one or more Fields describes a compound dataset. A schema
// with zero Fields describes a plain homogeneous dataset whose rows all have
// element kind Elem and secondary-axis shape Shape.
type Schema struct {
	Fields []Field `json:"fields,omitempty"`
	Elem   Kind    `json:"elem,omitempty"`
	Shape  []int   `json:"shape,omitempty"`
}

// Compound reports whether the schema has named fields.
func (s *Schema) Compound() bool {
	return len(s.Fields) > 0
}

// FieldIndex returns the position of the named field, or -1.
func (s *Schema) FieldIndex(name string) int {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas describe the same record type.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		f, g := s.Fields[i], other.Fields[i]
		if f.Name != g.Name || f.Kind != g.Kind || !shapeEqual(f.Shape, g.Shape) {
			return false
		}
	}
	if s.Compound() {
		return true
	}
	return s.Elem == other.Elem && shapeEqual(s.Shape, other.Shape)
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// shapeSize is the number of scalar elements per row for a sub-shape.
// An empty shape is a scalar, size 1.
func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
