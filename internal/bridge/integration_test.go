// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

//go:build integration && nats

package bridge

import (
	"context"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/testinfra"
)

func TestBridgePublishesToJetStream(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker, err := testinfra.NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("NewNATSContainer: %v", err)
	}
	defer broker.Terminate(ctx)

	b, err := New(config.NATSConfig{
		Enabled: true,
		URL:     broker.URL,
	})
	if err != nil {
		t.Fatalf("bridge New: %v", err)
	}
	defer b.Close()

	payload, err := record.FromArray([]float64{1, 2, 3}, 3)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	batch, err := record.Normalize(payload, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	tap := b.Tap()
	tap(notify.Event{Path: "/m/dev", Created: true})
	tap(notify.Event{Path: "/m/dev", Batch: batch})

	nc, err := natsgo.Connect(broker.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		stream, err := js.Stream(ctx, defaultStreamName)
		if err == nil {
			info, err := stream.Info(ctx)
			if err == nil && info.State.Msgs >= 2 {
				return
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatal("events did not reach the stream")
}
