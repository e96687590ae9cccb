// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build duckdb

package main

import (
	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/export"
)

// newExporter builds the DuckDB-backed exporter.
func newExporter(facade dataserver.API, cfg config.ExportConfig) api.Exporter {
	return export.New(facade, cfg)
}
