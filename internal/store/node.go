// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package store

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/cryodaq/cryodaq/internal/record"
)

// NodeKind distinguishes the two node kinds of the hierarchy.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota
	NodeGroup
	NodeDataset
)

var nodeKindNames = map[NodeKind]string{
	NodeGroup:   "group",
	NodeDataset: "dataset",
}

// String returns the wire name of the kind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "invalid"
}

// MarshalJSON encodes the kind as its wire name.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its wire name.
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range nodeKindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", name)
}

// NodeInfo describes one node of the hierarchy.
type NodeInfo struct {
	Path   string         `json:"path"`
	Kind   NodeKind       `json:"kind"`
	Schema *record.Schema `json:"schema,omitempty"`
	Rows   int64          `json:"rows"`
}

// nodeRecord is the persisted form of a node, stored as JSON under the n|
// key. Children are not persisted; they are derived from paths on open.
type nodeRecord struct {
	Kind   NodeKind       `json:"kind"`
	Schema *record.Schema `json:"schema,omitempty"`
	Rows   int64          `json:"rows,omitempty"`
}

// node is the in-memory index entry mirroring one nodeRecord.
type node struct {
	kind     NodeKind
	schema   *record.Schema
	rows     int64
	children map[string]struct{}
}

func newGroupNode() *node {
	return &node{kind: NodeGroup, children: make(map[string]struct{})}
}

func (n *node) childNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
