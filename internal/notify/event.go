// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package notify

import (
	"github.com/cryodaq/cryodaq/internal/record"
)

// Event is one store notification. The store emits a created event (nil
// batch, Created true) followed by a batch event when a dataset comes into
// existence, and a single batch event for every later extend.
type Event struct {
	// Path is the dataset path the event refers to.
	Path string

	// Batch holds the appended rows in converted form. Nil for created
	// events.
	Batch *record.Batch

	// Created marks the group-subscriber event emitted once per dataset
	// creation. Extends never set it.
	Created bool
}
