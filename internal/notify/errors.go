// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package notify

import "errors"

var (
	// ErrUnreachable classifies a delivery failure as connection-lost.
	// The dispatcher removes the subscription and keeps going; every
	// other delivery error is logged and the subscription kept. Targets
	// wrap their transport errors with this sentinel.
	ErrUnreachable = errors.New("subscriber unreachable")

	// ErrRunning indicates Start on a dispatcher that is already running.
	ErrRunning = errors.New("dispatcher already running")

	// ErrNotRunning indicates Stop on a dispatcher that is not running.
	ErrNotRunning = errors.New("dispatcher not running")
)
