// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package instrument

import (
	"context"
	"math"
	"sync"

	"github.com/cryodaq/cryodaq/internal/record"
)

// SimSource is a deterministic simulated signal source. It produces a
// sine wave sampled from an internal counter rather than the wall clock,
// so repeated runs yield identical data. Used for demos and as the driver
// of record in tests.
type SimSource struct {
	name      string
	amplitude float64
	frequency float64
	batchSize int

	mu      sync.Mutex
	sample  int64
	armed   bool
}

var (
	_ StatusProvider = (*SimSource)(nil)
	_ Sampler        = (*SimSource)(nil)
	_ Controllable   = (*SimSource)(nil)
)

// NewSimSource builds a simulated source. batchSize rows are produced per
// Sample call; values below one select 10.
func NewSimSource(name string, amplitude, frequency float64, batchSize int) *SimSource {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SimSource{
		name:      name,
		amplitude: amplitude,
		frequency: frequency,
		batchSize: batchSize,
	}
}

// Name implements Device.
func (s *SimSource) Name() string {
	return s.name
}

// Status implements StatusProvider.
func (s *SimSource) Status(ctx context.Context) (record.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return record.FromScalars(
		record.ScalarField{Name: "amplitude", Value: record.Float64Value(s.amplitude)},
		record.ScalarField{Name: "frequency", Value: record.Float64Value(s.frequency)},
		record.ScalarField{Name: "samples", Value: record.Int64Value(s.sample)},
		record.ScalarField{Name: "armed", Value: record.BoolValue(s.armed)},
	), nil
}

// Sample implements Sampler, producing the next batchSize points of the
// configured sine wave.
func (s *SimSource) Sample(ctx context.Context) (record.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := make([]float64, s.batchSize)
	values := make([]float64, s.batchSize)
	for i := range times {
		t := float64(s.sample) / 1000.0
		times[i] = t
		values[i] = s.amplitude * math.Sin(2*math.Pi*s.frequency*t)
		s.sample++
	}
	return record.FromColumns(
		record.ColumnField{Name: "time", Column: record.FloatColumn(times...)},
		record.ColumnField{Name: "signal", Column: record.FloatColumn(values...)},
	)
}

// Start implements Controllable.
func (s *SimSource) Start(ctx context.Context) error {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
	return nil
}

// Stop implements Controllable.
func (s *SimSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.armed = false
	s.mu.Unlock()
	return nil
}
