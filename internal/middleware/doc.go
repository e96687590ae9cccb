// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package middleware provides HTTP middleware shared by the data and
// control endpoints: Prometheus request instrumentation and gzip
// compression for large read responses.
package middleware
