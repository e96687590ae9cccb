// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

// Package notify carries store events to subscribers. The store puts one
// event per append (two per creation) on an unbounded queue; a single
// dispatch loop drains it, snapshots the matching subscriptions from the
// registry, and hands one delivery task per event to a bounded worker
// pool. Subscribers whose delivery fails with ErrUnreachable are removed
// on the spot; all other delivery errors are logged and the subscription
// kept.
//
// The loop itself never calls a subscriber and never blocks on the pool,
// so a slow or hung target can delay other deliveries at worst by
// occupying one pool slot, never the writers feeding the queue.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
)

// DefaultWorkers is the delivery pool size used when the configuration
// does not say otherwise.
const DefaultWorkers = 5

// drainTimeout bounds how long Stop waits for in-flight deliveries.
const drainTimeout = 5 * time.Second

// task is one event together with the subscription snapshot taken for it.
type task struct {
	ev   Event
	subs []*subscription
}

// Dispatcher drains the event queue and fans each event out to the
// matching subscriptions through its worker pool.
type Dispatcher struct {
	queue    *Queue[Event]
	registry *Registry
	tasks    *Queue[task]
	workers  int

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	pool     *sync.WaitGroup
	tap      func(Event)
}

// NewDispatcher wires a dispatcher to its event queue and registry.
// workers bounds the delivery pool; values below one select
// DefaultWorkers.
func NewDispatcher(queue *Queue[Event], registry *Registry, workers int) *Dispatcher {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		queue:    queue,
		registry: registry,
		tasks:    NewQueue[task](),
		workers:  workers,
	}
}

// Registry returns the subscription registry this dispatcher serves.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// SetTap installs a callback that observes every event before subscription
// matching, including events no subscription matches. The tap runs on the
// dispatch loop and must not block; hand the event off to your own queue.
// Call before Start.
func (d *Dispatcher) SetTap(tap func(Event)) {
	d.mu.Lock()
	d.tap = tap
	d.mu.Unlock()
}

// Start spawns the dispatch loop and the worker pool. Starting a running
// dispatcher fails ErrRunning.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.loopDone = make(chan struct{})
	d.pool = &sync.WaitGroup{}

	for i := 0; i < d.workers; i++ {
		d.pool.Add(1)
		go d.worker(ctx, d.pool)
	}
	go d.loop(ctx, d.loopDone)

	d.running = true
	logging.Info().Int("workers", d.workers).Msg("dispatcher started")
	return nil
}

// Stop cancels the dispatch loop, waits for it to terminate, and clears
// all registered subscriptions of both kinds. Workers finish their
// in-flight deliveries and are drained with a bounded timeout; a hung
// delivery is abandoned. Stopping a stopped dispatcher fails
// ErrNotRunning.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.running = false
	cancel := d.cancel
	loopDone := d.loopDone
	pool := d.pool
	d.mu.Unlock()

	cancel()
	<-loopDone
	d.registry.clear()

	drained := make(chan struct{})
	go func() {
		pool.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		logging.Warn().Msg("dispatcher drain timed out, abandoning in-flight deliveries")
	}

	logging.Info().Msg("dispatcher stopped")
	return nil
}

// loop is the single consumer of the event queue. It snapshots matching
// subscriptions under the registry lock and submits one task per event;
// delivery happens on the pool, so the loop never blocks on a subscriber.
func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	d.mu.Lock()
	tap := d.tap
	d.mu.Unlock()
	for {
		ev, err := d.queue.Get(ctx)
		if err != nil {
			return
		}
		metrics.RecordNotifyEvent(ev.Created)
		metrics.UpdateNotifyQueueDepth(d.queue.Len())
		if tap != nil {
			tap(ev)
		}

		var subs []*subscription
		if ev.Created {
			subs = d.registry.matchGroup(ev.Path)
		} else {
			subs = d.registry.matchDataset(ev.Path)
		}
		if len(subs) == 0 {
			continue
		}
		d.tasks.Put(task{ev: ev, subs: subs})
	}
}

func (d *Dispatcher) worker(ctx context.Context, pool *sync.WaitGroup) {
	defer pool.Done()
	for {
		t, err := d.tasks.Get(ctx)
		if err != nil {
			return
		}
		d.deliver(t)
	}
}

// deliver fans one event out to its snapshot sequentially, outside any
// registry lock. Unreachable targets are deregistered; other errors keep
// the subscription.
func (d *Dispatcher) deliver(t task) {
	for _, sub := range t.subs {
		var err error
		if t.ev.Created {
			err = sub.target.OnCreated(t.ev.Path)
		} else {
			err = sub.target.OnData(t.ev.Path, t.ev.Batch)
		}

		switch {
		case err == nil:
			metrics.RecordDelivery("ok")
		case errors.Is(err, ErrUnreachable):
			metrics.RecordDelivery("unreachable")
			metrics.RecordSubscriptionRemoval("unreachable")
			logging.Info().
				Err(err).
				Str("subscription_id", sub.id).
				Str("path", sub.path).
				Msg("removing unreachable subscriber")
			d.registry.Unsubscribe(sub.id)
		default:
			metrics.RecordDelivery("error")
			logging.Warn().
				Err(err).
				Str("subscription_id", sub.id).
				Str("path", sub.path).
				Msg("delivery failed, keeping subscription")
		}
	}
}
