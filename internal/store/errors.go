// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package store

import "errors"

var (
	// ErrNotFound indicates the path names no existing node.
	ErrNotFound = errors.New("node not found")

	// ErrNotADataset indicates a dataset operation addressed a group.
	ErrNotADataset = errors.New("node is not a dataset")

	// ErrNotAGroup indicates a group operation addressed a dataset.
	ErrNotAGroup = errors.New("node is not a group")

	// ErrInvalidPath indicates a path that violates the addressing rules:
	// absolute, '/'-separated, non-empty segments, no '|' characters.
	ErrInvalidPath = errors.New("invalid path")

	// ErrClosed indicates an operation on a store after Close.
	ErrClosed = errors.New("store is closed")
)
