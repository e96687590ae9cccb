// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

/*
Package gateway is the client side of the data endpoint: it implements
the same facade the in-process service exposes, over HTTP and WebSocket.
Instrument drivers and analysis scripts written against the facade run
unchanged inside the daemon or in a separate process.

HTTP calls run behind a circuit breaker so a dead daemon fails fast
instead of piling up timeouts. Subscriptions ride one WebSocket
connection that reconnects with backoff; on reconnect every live
subscription is re-established. Server-side subscription ids change
across reconnects, so the gateway hands out stable client-side handles
and tracks the mapping internally.
*/
package gateway
