// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package services

import (
	"context"
)

// Runner matches the status collector's loop: Run blocks until ctx is
// canceled.
type Runner interface {
	Run(ctx context.Context) error
}

// CollectorService supervises the periodic status collector. A crashed
// collector is restarted by suture; pending resends live inside the
// collector and survive the restart only if the same instance is reused,
// which suture guarantees.
type CollectorService struct {
	runner Runner
}

// NewCollectorService wraps the status collector.
func NewCollectorService(runner Runner) *CollectorService {
	return &CollectorService{runner: runner}
}

// Serve implements suture.Service.
func (c *CollectorService) Serve(ctx context.Context) error {
	return c.runner.Run(ctx)
}

// String identifies the service in suture logs.
func (c *CollectorService) String() string {
	return "status-collector"
}
