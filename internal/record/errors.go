// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package record

import "errors"

var (
	// ErrShapeMismatch indicates inconsistent column lengths or a ragged or
	// mixed-type array within a single payload. The write is not attempted.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrIncompatibleSchema indicates a payload that cannot be converted
	// exactly to a dataset's frozen schema. No partial write occurs.
	ErrIncompatibleSchema = errors.New("incompatible schema")

	// ErrUnknownField indicates a field selection naming no schema field.
	ErrUnknownField = errors.New("unknown field")
)
