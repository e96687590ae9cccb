// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package bridge republishes store notifications to NATS JetStream for
// downstream consumers such as live plotters and archivers. The bridge
// taps the dispatcher's event flow, serializes each event, and publishes
// it on a subject derived from the event kind. Delivery is best effort:
// publish failures are logged, counted, and dropped; the write path never
// waits on NATS.
//
// The full implementation requires the nats build tag. Without it the
// package compiles to a constructor that reports the bridge as
// unavailable.
package bridge
