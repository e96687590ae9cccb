// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/instrument"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
	"github.com/cryodaq/cryodaq/internal/record"
)

// statusRoot is the group status snapshots live under.
const statusRoot = "/status"

// DefaultStatusInterval paces the collector when config leaves it unset.
const DefaultStatusInterval = 10 * time.Second

// pendingStatus is a snapshot whose append failed and is owed a retry.
type pendingStatus struct {
	device  string
	payload record.Payload
}

// Collector periodically snapshots every status-capable device and
// appends the snapshot under /status/<device>. A snapshot whose append
// fails is cached and resent ahead of the next cycle, so a transient
// store problem loses nothing.
type Collector struct {
	api      dataserver.API
	registry *instrument.Registry
	interval time.Duration

	pending []pendingStatus
}

// NewCollector wires a collector to the data service and the device
// registry. interval values of zero or below select the default.
func NewCollector(api dataserver.API, registry *instrument.Registry, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	return &Collector{
		api:      api,
		registry: registry,
		interval: interval,
	}
}

// Run collects until ctx is cancelled. The first cycle fires after one
// interval, not immediately, so freshly registered devices settle first.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// collect runs one cycle: resend cached snapshots, then snapshot every
// status-capable device.
func (c *Collector) collect(ctx context.Context) {
	c.flushPending(ctx)

	for _, provider := range c.registry.StatusProviders() {
		name := provider.Name()
		payload, err := provider.Status(ctx)
		if err != nil {
			metrics.RecordStatusCollection(name, "error")
			logging.Warn().Err(err).Str("device", name).Msg("status read failed")
			continue
		}
		c.append(ctx, name, payload, "ok")
	}
}

// flushPending retries snapshots held over from failed appends. A retry
// that fails again goes back on the queue.
func (c *Collector) flushPending(ctx context.Context) {
	if len(c.pending) == 0 {
		return
	}
	queued := c.pending
	c.pending = nil
	for _, p := range queued {
		c.append(ctx, p.device, p.payload, "resent")
	}
}

// append writes one snapshot, queueing it for the next cycle on failure.
func (c *Collector) append(ctx context.Context, device string, payload record.Payload, outcome string) {
	path := fmt.Sprintf("%s/%s", statusRoot, device)
	if _, err := c.api.Append(ctx, path, payload, nil); err != nil {
		metrics.RecordStatusCollection(device, "error")
		logging.Warn().Err(err).Str("device", device).Msg("status append failed, holding for retry")
		c.pending = append(c.pending, pendingStatus{device: device, payload: payload})
		return
	}
	metrics.RecordStatusCollection(device, outcome)
}
