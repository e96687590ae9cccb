// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build nats

package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
	"github.com/cryodaq/cryodaq/internal/notify"
)

// Available reports whether this binary carries the NATS bridge.
const Available = true

// Bridge mirrors store events onto a JetStream stream. Install Tap on
// the data service before starting it; Close before service shutdown is
// not required, pending events are simply dropped.
type Bridge struct {
	cfg        Config
	server     *EmbeddedServer
	pub        *Publisher
	serializer *Serializer

	events chan notify.Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// New builds and starts the bridge: embedded server when configured,
// stream provisioning, publisher, and the publish loop.
func New(cfg config.NATSConfig) (*Bridge, error) {
	resolved := FromConfig(cfg)

	b := &Bridge{
		cfg:        resolved,
		serializer: NewSerializer(),
		events:     make(chan notify.Event, resolved.QueueDepth),
		done:       make(chan struct{}),
	}

	if resolved.EmbeddedServer {
		srv, err := NewEmbeddedServer(resolved)
		if err != nil {
			return nil, fmt.Errorf("start embedded server: %w", err)
		}
		b.server = srv
		b.cfg.URL = srv.ClientURL()
	}

	if err := b.provisionStream(); err != nil {
		b.stopServer()
		return nil, err
	}

	pub, err := NewPublisher(b.cfg)
	if err != nil {
		b.stopServer()
		return nil, err
	}
	b.pub = pub

	go b.run()

	logging.Info().
		Str("url", b.cfg.URL).
		Str("stream", b.cfg.StreamName).
		Str("subject_prefix", b.cfg.SubjectPrefix).
		Bool("embedded", b.server != nil).
		Msg("event bridge started")
	return b, nil
}

// provisionStream connects long enough to create or update the stream.
func (b *Bridge) provisionStream() error {
	nc, err := natsgo.Connect(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect for stream provisioning: %w", err)
	}
	defer nc.Close()

	mgr, err := NewStreamManager(nc, b.cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := mgr.EnsureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}
	return nil
}

// Tap returns the dispatcher tap. It never blocks; events past the
// buffer bound are dropped and counted.
func (b *Bridge) Tap() func(notify.Event) {
	return func(ev notify.Event) {
		select {
		case b.events <- ev:
		default:
			metrics.RecordBridgePublish("dropped")
		}
	}
}

// run is the publish loop: serialize, publish, count. Failures are
// logged and dropped.
func (b *Bridge) run() {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.events:
			b.publish(ev)
		}
	}
}

func (b *Bridge) publish(ev notify.Event) {
	event := FromNotify(ev, uuid.NewString(), time.Now())
	data, err := b.serializer.Marshal(event)
	if err != nil {
		metrics.RecordBridgePublish("error")
		logging.Warn().Err(err).Str("path", ev.Path).Msg("bridge serialization failed")
		return
	}

	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("path", event.Path)

	if err := b.pub.Publish(event.Subject(b.cfg), msg); err != nil {
		metrics.RecordBridgePublish("error")
		logging.Warn().Err(err).Str("path", ev.Path).Msg("bridge publish failed, dropping event")
		return
	}
	metrics.RecordBridgePublish("ok")
}

func (b *Bridge) stopServer() {
	if b.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("embedded NATS shutdown")
	}
}

// Close stops the publish loop, the publisher, and the embedded server.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	err := b.pub.Close()
	b.stopServer()
	logging.Info().Msg("event bridge stopped")
	return err
}
