// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package measure orchestrates data acquisition: named measurement runs
// with one worker goroutine per device, rendezvousing at a barrier so all
// devices start sampling together, and a periodic status collector that
// appends device state snapshots.
package measure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/instrument"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
)

var (
	// ErrRunExists indicates Start with a name already running.
	ErrRunExists = errors.New("measurement run already exists")

	// ErrRunNotFound indicates Stop or Info for an unknown run name.
	ErrRunNotFound = errors.New("measurement run not found")

	// ErrNoDevices indicates Start with an empty device list.
	ErrNoDevices = errors.New("measurement needs at least one device")
)

// measurementRoot is the group all run datasets live under.
const measurementRoot = "/measurement"

// defaultSampleInterval paces workers whose devices sample instantly.
const defaultSampleInterval = 100 * time.Millisecond

// RunInfo describes one running measurement.
type RunInfo struct {
	Name    string    `json:"name"`
	Devices []string  `json:"devices"`
	Started time.Time `json:"started"`
}

// run is one live measurement.
type run struct {
	info   RunInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner starts and stops measurement runs. Each run spawns one worker
// per device; the workers arm their devices, rendezvous at a barrier so
// sampling begins simultaneously, and then append batches under
// /measurement/<run>/<device> until the run is stopped.
type Runner struct {
	api      dataserver.API
	registry *instrument.Registry
	interval time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

// NewRunner wires a runner to the data service and the device registry.
// interval paces each worker's sampling loop; values of zero or below
// select the default.
func NewRunner(api dataserver.API, registry *instrument.Registry, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	return &Runner{
		api:      api,
		registry: registry,
		interval: interval,
		runs:     make(map[string]*run),
	}
}

// Start launches a measurement run over the named devices. Every device
// must exist and carry the sample capability; capability checks happen
// before any worker starts, so a bad device list fails cleanly.
func (r *Runner) Start(name string, devices []string) (RunInfo, error) {
	if len(devices) == 0 {
		return RunInfo{}, ErrNoDevices
	}

	samplers := make([]instrument.Sampler, len(devices))
	for i, dev := range devices {
		s, err := r.registry.Sampler(dev)
		if err != nil {
			return RunInfo{}, err
		}
		samplers[i] = s
	}

	r.mu.Lock()
	if _, ok := r.runs[name]; ok {
		r.mu.Unlock()
		return RunInfo{}, fmt.Errorf("run %q: %w", name, ErrRunExists)
	}
	ctx, cancel := context.WithCancel(context.Background())
	rn := &run{
		info: RunInfo{
			Name:    name,
			Devices: append([]string(nil), devices...),
			Started: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.runs[name] = rn
	r.mu.Unlock()

	metrics.TrackMeasurementRun(true)
	logging.Info().Str("run", name).Strs("devices", devices).Msg("measurement started")

	go func() {
		defer close(rn.done)
		r.execute(ctx, name, samplers)

		r.mu.Lock()
		delete(r.runs, name)
		r.mu.Unlock()
		metrics.TrackMeasurementRun(false)
		logging.Info().Str("run", name).Msg("measurement finished")
	}()

	return rn.info, nil
}

// execute runs the per-device workers until ctx is cancelled. All workers
// rendezvous after arming their devices so the first samples line up.
func (r *Runner) execute(ctx context.Context, name string, samplers []instrument.Sampler) {
	barrier := newBarrier(len(samplers))
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range samplers {
		sampler := s
		g.Go(func() error {
			return r.worker(ctx, name, sampler, barrier)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("run", name).Msg("measurement worker failed")
	}
}

// worker arms one device, waits for the common start, then samples and
// appends until cancellation. Append errors abort the run: a broken
// schema or closed store will not fix itself mid-measurement.
func (r *Runner) worker(ctx context.Context, name string, sampler instrument.Sampler, barrier *barrier) error {
	device := sampler.Name()
	path := fmt.Sprintf("%s/%s/%s", measurementRoot, name, device)

	if ctrl, ok := sampler.(instrument.Controllable); ok {
		if err := ctrl.Start(ctx); err != nil {
			return fmt.Errorf("arm %q: %w", device, err)
		}
		defer func() {
			if err := ctrl.Stop(context.Background()); err != nil {
				logging.Warn().Err(err).Str("device", device).Msg("device disarm failed")
			}
		}()
	}

	if err := barrier.wait(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		payload, err := sampler.Sample(ctx)
		if err != nil {
			metrics.RecordMeasurementBatch(device, err)
			return fmt.Errorf("sample %q: %w", device, err)
		}
		_, err = r.api.Append(ctx, path, payload, nil)
		metrics.RecordMeasurementBatch(device, err)
		if err != nil {
			return fmt.Errorf("append %q: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop cancels a run and waits for its workers to finish.
func (r *Runner) Stop(name string) error {
	r.mu.Lock()
	rn, ok := r.runs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %q: %w", name, ErrRunNotFound)
	}
	rn.cancel()
	<-rn.done
	return nil
}

// StopAll cancels every live run. Called on daemon shutdown.
func (r *Runner) StopAll() {
	r.mu.Lock()
	runs := make([]*run, 0, len(r.runs))
	for _, rn := range r.runs {
		runs = append(runs, rn)
	}
	r.mu.Unlock()

	for _, rn := range runs {
		rn.cancel()
		<-rn.done
	}
}

// List returns the live runs sorted by name.
func (r *Runner) List() []RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunInfo, 0, len(r.runs))
	for _, rn := range r.runs {
		out = append(out, rn.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// barrier is a one-shot rendezvous for n parties. The last arriver
// releases everyone; cancellation releases waiters with the context
// error so a stuck device cannot hang the whole run forever.
type barrier struct {
	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{pending: n, release: make(chan struct{})}
}

func (b *barrier) wait(ctx context.Context) error {
	b.mu.Lock()
	b.pending--
	if b.pending == 0 {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
