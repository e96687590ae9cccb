// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package websocket carries live store notifications to remote
// subscribers. Each upgraded connection becomes a Client with a read pump
// (subscribe/unsubscribe requests) and a write pump (data and created
// frames plus keepalive pings).
//
// A Client's delivery target never blocks the dispatcher's worker pool:
// outbound frames go through a bounded queue, and a client that cannot
// drain it is classified unreachable, which removes its subscriptions.
// Disconnects clean up the same way, so the registry never accumulates
// dead viewers.
package websocket
