// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package notify

import "github.com/google/uuid"

// IDSource produces process-unique subscription ids. Ids are never reused
// while the process lives; tests inject deterministic sources.
type IDSource interface {
	NewID() string
}

// UUIDSource is the default IDSource, backed by random UUIDs.
type UUIDSource struct{}

// NewID returns a fresh UUID string.
func (UUIDSource) NewID() string {
	return uuid.New().String()
}
