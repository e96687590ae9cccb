// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package dataserver defines the boundary of the data service. The API
// interface lists every operation a client can perform against the
// hierarchical container; Service implements it in-process on top of the
// append store and the callback dispatcher, and the gateway package
// implements the same interface remotely over HTTP and WebSocket.
package dataserver

import (
	"context"

	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// NodeInfo describes one node of the container together with its metadata.
// Schema is nil and Rows is zero for groups.
type NodeInfo struct {
	Path   string                 `json:"path"`
	Kind   store.NodeKind         `json:"kind"`
	Schema *record.Schema         `json:"schema,omitempty"`
	Rows   int64                  `json:"rows"`
	Attrs  map[string]interface{} `json:"attrs,omitempty"`
}

// API is the data service boundary. Both the in-process Service and the
// remote gateway client satisfy it, so instrument drivers and measurement
// code run unchanged inside the daemon or in an external process.
//
// Attribute updates ride on Append: the attrs argument is merged into the
// dataset metadata after the rows are committed.
type API interface {
	// Append normalizes payload and appends it to the dataset at path,
	// creating the dataset and any missing parent groups on first write.
	Append(ctx context.Context, path string, payload record.Payload, attrs map[string]interface{}) (store.AppendResult, error)

	// Node reports kind, schema, row count and metadata of the node at
	// path. Fails store.ErrNotFound for unknown paths.
	Node(ctx context.Context, path string) (NodeInfo, error)

	// Values reads rows [start, stop) of the dataset at path, the whole
	// dataset when both bounds are nil. Negative bounds count from the
	// end. A non-empty field selects one column of a compound dataset.
	Values(ctx context.Context, path string, start, stop *int, field string) (*record.Batch, error)

	// Keys lists the sorted child names of the group at path.
	Keys(ctx context.Context, path string) ([]string, error)

	// Subscribe registers target for events at path and returns the
	// subscription id. Dataset subscriptions match the path exactly and
	// receive appended batches; group subscriptions match by prefix and
	// receive dataset creations.
	Subscribe(ctx context.Context, path string, kind notify.Kind, target notify.Target) (string, error)

	// Unsubscribe removes a subscription. Unknown ids are ignored:
	// explicit removal races with dispatcher-triggered cleanup.
	Unsubscribe(ctx context.Context, id string) error
}
