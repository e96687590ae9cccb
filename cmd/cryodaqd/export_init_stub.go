// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build !duckdb

package main

import (
	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/dataserver"
)

// newExporter returns nil so the export endpoint reports the feature as
// unavailable. Returning a typed nil here would defeat the router's nil
// check, hence the untyped return.
func newExporter(dataserver.API, config.ExportConfig) api.Exporter {
	return nil
}
