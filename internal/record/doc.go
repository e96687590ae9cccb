// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package record converts heterogeneous append payloads into uniform typed
// batches.
//
// Writers hand the store one of three payload shapes: a homogeneous array,
// a set of named scalar values, or a set of named equal-length columns. The
// shapes are carried by an explicit tagged union (Payload) with one
// classification step at construction; downstream code never probes types.
//
// Normalize turns a Payload into a columnar Batch. On the first write to a
// path it infers a Schema from the payload (per-field kind and fixed
// sub-shape, sampled from the first value); on later writes it packs the
// payload into the dataset's frozen Schema and rejects anything that does
// not convert exactly. The single permitted widening is int64 -> float64,
// since JSON carries integral literals for float fields.
//
// A zero-row payload short-circuits before any inference: the resulting
// Batch is empty and the store treats the whole append as a no-op.
package record
