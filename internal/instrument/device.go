// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package instrument hosts the device drivers the daemon exposes. A driver
// implements Device plus whichever capability interfaces it supports;
// callers check capabilities with type assertions before invoking them, so
// a driver never has to stub out operations it cannot perform.
package instrument

import (
	"context"

	"github.com/cryodaq/cryodaq/internal/record"
)

// Device is the minimal contract every driver satisfies.
type Device interface {
	// Name is the device's registry name, unique per process. It becomes
	// a path segment under /status and /measurement, so it follows the
	// same rules as node names.
	Name() string
}

// StatusProvider is implemented by drivers that can report their current
// state (temperatures, ranges, lock-in settings). The status collector
// appends the returned payload under /status/<name>.
type StatusProvider interface {
	Device

	// Status samples the device state. The payload is typically a
	// map-of-scalars so one call appends one row.
	Status(ctx context.Context) (record.Payload, error)
}

// Sampler is implemented by drivers that acquire measurement data. A
// measurement worker calls Sample in a loop and appends each payload under
// /measurement/<run>/<name>.
type Sampler interface {
	Device

	// Sample acquires the next batch. Returning an empty payload is
	// allowed and appends nothing.
	Sample(ctx context.Context) (record.Payload, error)
}

// Controllable is implemented by drivers that need arming before and
// disarming after a measurement run (trigger setup, output enable).
type Controllable interface {
	Device

	// Start arms the device for acquisition.
	Start(ctx context.Context) error

	// Stop disarms the device after acquisition.
	Stop(ctx context.Context) error
}

// Capability names reported by Capabilities.
const (
	CapStatus  = "status"
	CapSample  = "sample"
	CapControl = "control"
)

// Capabilities lists the capability interfaces dev implements, in a fixed
// order.
func Capabilities(dev Device) []string {
	var caps []string
	if _, ok := dev.(StatusProvider); ok {
		caps = append(caps, CapStatus)
	}
	if _, ok := dev.(Sampler); ok {
		caps = append(caps, CapSample)
	}
	if _, ok := dev.(Controllable); ok {
		caps = append(caps, CapControl)
	}
	return caps
}
