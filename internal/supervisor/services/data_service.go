// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// StartStopper matches the data service lifecycle: Start launches the
// dispatcher, Stop drains it and closes the store.
type StartStopper interface {
	Start() error
	Stop() error
}

// DataService supervises the store service. The store's lifetime is the
// process lifetime; a failed start is not retried because the container
// is single-open.
type DataService struct {
	svc StartStopper
}

// NewDataService wraps the store service.
func NewDataService(svc StartStopper) *DataService {
	return &DataService{svc: svc}
}

// Serve implements suture.Service.
func (d *DataService) Serve(ctx context.Context) error {
	if err := d.svc.Start(); err != nil {
		return fmt.Errorf("data service start: %w: %w", err, suture.ErrDoNotRestart)
	}
	<-ctx.Done()
	if err := d.svc.Stop(); err != nil {
		return fmt.Errorf("data service stop: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in suture logs.
func (d *DataService) String() string {
	return "data-service"
}
