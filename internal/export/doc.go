// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package export dumps acquired datasets into a DuckDB file for offline
// analysis. Each dataset becomes one table named after its path; plain
// datasets get a single value column, compound datasets one column per
// field. Rows with a secondary axis are stored as JSON text.
//
// The full implementation requires the duckdb build tag (CGO). Without
// it the package compiles to a constructor whose Export reports the
// feature as unavailable.
package export
