// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package dataserver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// storeExt is the file extension of on-disk containers.
const storeExt = ".cryo"

// timestampLayout names auto-created containers after the UTC start time.
const timestampLayout = "2006-01-02_15h04m05s"

// StorePath resolves the container directory for this run: cfg.Dir joined
// with cfg.Name, or with a name derived from now (UTC) when no name is
// configured.
func StorePath(cfg config.StoreConfig, now time.Time) string {
	name := cfg.Name
	if name == "" {
		name = now.UTC().Format(timestampLayout) + storeExt
	}
	return filepath.Join(cfg.Dir, name)
}

// Service is the in-process data service. It owns the append store, the
// notification queue, the subscription registry and the callback
// dispatcher, and instruments every boundary operation.
type Service struct {
	store *store.Store
	queue *notify.Queue[notify.Event]
	disp  *notify.Dispatcher
}

var _ API = (*Service)(nil)

// New wires the data service together: notification queue feeding a
// dispatcher with workers delivery goroutines, and the container opened per
// cfg (in-memory, or on disk under the resolved store path). A nil ids
// falls back to UUID subscription ids.
func New(cfg config.StoreConfig, workers int, ids notify.IDSource) (*Service, error) {
	queue := notify.NewQueue[notify.Event]()
	registry := notify.NewRegistry(ids)
	disp := notify.NewDispatcher(queue, registry, workers)

	st, err := store.Open(store.Config{
		Path:       StorePath(cfg, time.Now()),
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
	}, queue)
	if err != nil {
		return nil, err
	}

	return &Service{store: st, queue: queue, disp: disp}, nil
}

// Start launches the callback dispatcher. Appends before Start are
// accepted; their notifications queue up and deliver once the dispatcher
// runs.
func (s *Service) Start() error {
	return s.disp.Start()
}

// Stop halts the dispatcher, dropping all live subscriptions, then closes
// the container. The service is dead afterwards.
func (s *Service) Stop() error {
	stopErr := s.disp.Stop()
	if err := s.store.Close(); err != nil {
		return err
	}
	if stopErr != nil {
		logging.Warn().Err(stopErr).Msg("dispatcher stop during service shutdown")
	}
	return nil
}

// Store exposes the underlying container for components that need direct
// read access, such as the exporter.
func (s *Service) Store() *store.Store {
	return s.store
}

// SetEventTap installs a non-blocking observer for every store event,
// regardless of subscriptions. Used by the event bridge. Call before Start.
func (s *Service) SetEventTap(tap func(notify.Event)) {
	s.disp.SetTap(tap)
}

// Append implements API.
func (s *Service) Append(ctx context.Context, path string, payload record.Payload, attrs map[string]interface{}) (store.AppendResult, error) {
	start := time.Now()
	res, err := s.store.Append(path, payload, attrs)
	metrics.RecordAppend(res.Created, res.Rows, time.Since(start), err)
	return res, err
}

// Node implements API.
func (s *Service) Node(ctx context.Context, path string) (NodeInfo, error) {
	info, err := s.store.Node(path)
	metrics.RecordRead("node", err)
	if err != nil {
		return NodeInfo{}, err
	}
	attrs, err := s.store.Attrs(path)
	if err != nil {
		return NodeInfo{}, err
	}
	return NodeInfo{
		Path:   info.Path,
		Kind:   info.Kind,
		Schema: info.Schema,
		Rows:   info.Rows,
		Attrs:  attrs,
	}, nil
}

// Values implements API.
func (s *Service) Values(ctx context.Context, path string, start, stop *int, field string) (*record.Batch, error) {
	b, err := s.store.Values(path, start, stop, field)
	metrics.RecordRead("values", err)
	return b, err
}

// Keys implements API.
func (s *Service) Keys(ctx context.Context, path string) ([]string, error) {
	keys, err := s.store.Keys(path)
	metrics.RecordRead("keys", err)
	return keys, err
}

// Subscribe implements API. Paths are not validated for existence: group
// subscriptions exist precisely to observe datasets that are not there yet.
func (s *Service) Subscribe(ctx context.Context, path string, kind notify.Kind, target notify.Target) (string, error) {
	return s.disp.Registry().Subscribe(path, target, kind), nil
}

// Unsubscribe implements API.
func (s *Service) Unsubscribe(ctx context.Context, id string) error {
	s.disp.Registry().Unsubscribe(id)
	return nil
}
