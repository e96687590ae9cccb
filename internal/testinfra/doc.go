// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package testinfra provides container infrastructure for integration
// tests. It uses testcontainers-go to stand up a real NATS JetStream
// broker so bridge tests can exercise actual stream provisioning,
// publish deduplication, and reconnects.
//
// Everything here is behind the integration build tag; tests skip
// themselves when Docker is unavailable.
package testinfra
