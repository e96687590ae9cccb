// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package notify

import (
	"strings"
	"sync"

	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
	"github.com/cryodaq/cryodaq/internal/record"
)

// Kind selects how a subscription matches notified paths.
type Kind uint8

const (
	// KindDataset subscriptions match batch events on exact path equality.
	KindDataset Kind = iota + 1

	// KindGroup subscriptions match created events whose path starts with
	// the subscribed path.
	KindGroup
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDataset:
		return "dataset"
	case KindGroup:
		return "group"
	default:
		return "invalid"
	}
}

// Target receives deliveries for one subscription. A dataset subscription
// only ever sees OnData, a group subscription only OnCreated. Returning an
// error wrapped with ErrUnreachable removes the subscription.
type Target interface {
	// OnData delivers the converted batch appended to an exactly matching
	// dataset path.
	OnData(path string, batch *record.Batch) error

	// OnCreated delivers the path of a dataset created under a subscribed
	// group prefix.
	OnCreated(path string) error
}

// DataFunc adapts a function to a dataset-kind Target.
type DataFunc func(path string, batch *record.Batch) error

func (f DataFunc) OnData(path string, batch *record.Batch) error { return f(path, batch) }
func (f DataFunc) OnCreated(string) error                        { return nil }

// CreatedFunc adapts a function to a group-kind Target.
type CreatedFunc func(path string) error

func (f CreatedFunc) OnData(string, *record.Batch) error { return nil }
func (f CreatedFunc) OnCreated(path string) error        { return f(path) }

type subscription struct {
	id     string
	path   string
	target Target
}

// Registry holds the live subscriptions in two disjoint maps, one per
// kind, each behind its own lock so a dispatch snapshot contends on at
// most one of them.
type Registry struct {
	ids IDSource

	dsMu    sync.RWMutex
	dataset map[string]*subscription

	grMu  sync.RWMutex
	group map[string]*subscription
}

// NewRegistry returns an empty registry drawing ids from ids. A nil ids
// falls back to the UUID source.
func NewRegistry(ids IDSource) *Registry {
	if ids == nil {
		ids = UUIDSource{}
	}
	return &Registry{
		ids:     ids,
		dataset: make(map[string]*subscription),
		group:   make(map[string]*subscription),
	}
}

// Subscribe registers target for path and returns the fresh subscription
// id. Kinds other than KindGroup register as dataset subscriptions.
func (r *Registry) Subscribe(path string, target Target, kind Kind) string {
	sub := &subscription{id: r.ids.NewID(), path: path, target: target}

	switch kind {
	case KindGroup:
		r.grMu.Lock()
		r.group[sub.id] = sub
		r.grMu.Unlock()
	default:
		kind = KindDataset
		r.dsMu.Lock()
		r.dataset[sub.id] = sub
		r.dsMu.Unlock()
	}

	dataset, group := r.Count()
	metrics.UpdateSubscriptions(dataset, group)
	logging.Debug().
		Str("subscription_id", sub.id).
		Str("path", path).
		Str("kind", kind.String()).
		Msg("subscription added")
	return sub.id
}

// Unsubscribe removes the subscription with the given id. Unknown ids are
// logged and ignored: explicit removals race with dispatcher-triggered
// cleanup, so redundant calls must stay safe.
func (r *Registry) Unsubscribe(id string) {
	if r.remove(id) {
		dataset, group := r.Count()
		metrics.UpdateSubscriptions(dataset, group)
		logging.Debug().Str("subscription_id", id).Msg("subscription removed")
		return
	}
	logging.Debug().Str("subscription_id", id).Msg("unsubscribe for unknown id ignored")
}

func (r *Registry) remove(id string) bool {
	r.dsMu.Lock()
	if _, ok := r.dataset[id]; ok {
		delete(r.dataset, id)
		r.dsMu.Unlock()
		return true
	}
	r.dsMu.Unlock()

	r.grMu.Lock()
	if _, ok := r.group[id]; ok {
		delete(r.group, id)
		r.grMu.Unlock()
		return true
	}
	r.grMu.Unlock()
	return false
}

// Count returns the number of live subscriptions per kind.
func (r *Registry) Count() (dataset, group int) {
	r.dsMu.RLock()
	dataset = len(r.dataset)
	r.dsMu.RUnlock()
	r.grMu.RLock()
	group = len(r.group)
	r.grMu.RUnlock()
	return dataset, group
}

// matchDataset snapshots the dataset subscriptions exactly matching path.
func (r *Registry) matchDataset(path string) []*subscription {
	r.dsMu.RLock()
	defer r.dsMu.RUnlock()
	var out []*subscription
	for _, sub := range r.dataset {
		if sub.path == path {
			out = append(out, sub)
		}
	}
	return out
}

// matchGroup snapshots the group subscriptions whose path is a prefix of
// the notified path.
func (r *Registry) matchGroup(path string) []*subscription {
	r.grMu.RLock()
	defer r.grMu.RUnlock()
	var out []*subscription
	for _, sub := range r.group {
		if strings.HasPrefix(path, sub.path) {
			out = append(out, sub)
		}
	}
	return out
}

// clear drops every subscription of both kinds.
func (r *Registry) clear() {
	r.dsMu.Lock()
	n := len(r.dataset)
	r.dataset = make(map[string]*subscription)
	r.dsMu.Unlock()

	r.grMu.Lock()
	n += len(r.group)
	r.group = make(map[string]*subscription)
	r.grMu.Unlock()

	if n > 0 {
		metrics.SubscriptionRemovals.WithLabelValues("shutdown").Add(float64(n))
	}
	metrics.UpdateSubscriptions(0, 0)
}
