// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

/*
Package api implements the HTTP surface of the daemon: the data endpoint
(append, read, keys, WebSocket subscribe) and the control endpoint
(instrument listing, measurement runs, login), both built on the Chi
router with shared middleware for CORS, rate limiting, request IDs and
Prometheus instrumentation.

Every response uses the same JSON envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", ...}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}

Domain errors from the store and record packages map to stable
machine-readable codes so clients can branch without parsing messages.
*/
package api
