// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build !nats

package bridge

import (
	"fmt"

	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/notify"
)

// Available reports whether this binary carries the NATS bridge.
const Available = false

// Bridge is a stub when the binary is built without the nats tag.
type Bridge struct{}

// New reports the bridge as unavailable. Build with -tags=nats to enable
// JetStream event mirroring.
func New(cfg config.NATSConfig) (*Bridge, error) {
	return nil, fmt.Errorf("NATS bridge not available: build with -tags=nats")
}

// Tap returns a no-op tap.
func (b *Bridge) Tap() func(notify.Event) {
	return func(notify.Event) {}
}

// Close is a no-op.
func (b *Bridge) Close() error { return nil }
