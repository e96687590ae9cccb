// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build !duckdb

package export

import (
	"fmt"
	"net/http"

	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/dataserver"
)

// Exporter is a stub when the binary is built without the duckdb tag.
type Exporter struct{}

// New returns a stub exporter. Build with -tags=duckdb for DuckDB
// export support.
func New(facade dataserver.API, cfg config.ExportConfig) *Exporter {
	return &Exporter{}
}

// Export reports the feature as unavailable.
func (e *Exporter) Export(r *http.Request, req api.ExportRequest) (interface{}, error) {
	return nil, fmt.Errorf("DuckDB export not available: build with -tags=duckdb")
}
