// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cryodaq/cryodaq/internal/api"
	"github.com/cryodaq/cryodaq/internal/auth"
	"github.com/cryodaq/cryodaq/internal/authz"
	"github.com/cryodaq/cryodaq/internal/config"
	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// newTestServer runs a real data endpoint over an in-memory store and
// returns a gateway client pointed at it.
func newTestServer(t *testing.T) (*Client, *dataserver.Service) {
	t.Helper()

	svc, err := dataserver.New(config.StoreConfig{InMemory: true}, 2, nil)
	if err != nil {
		t.Fatalf("dataserver.New: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("service start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })

	authn, err := auth.NewAuthenticator(config.SecurityConfig{AuthMode: auth.ModeNone})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	router := api.NewDataRouter(
		api.NewDataHandler(svc, nil),
		api.NewChiMiddleware(&api.ChiMiddlewareConfig{RateLimitDisabled: true}),
		authn,
		authz.NewMiddleware(nil, false),
		nil,
	).Setup()

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	client, err := NewClient(Config{BaseURL: ts.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, svc
}

func TestRemoteAppendAndRead(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	payload, err := record.FromArray([]float64{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	res, err := client.Append(ctx, "/m/run/dev", payload, map[string]interface{}{"unit": "V"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if res.Rows != 2 || !res.Created || res.Total != 2 {
		t.Fatalf("result = %+v", res)
	}

	batch, err := client.Values(ctx, "/m/run/dev", nil, nil, "")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if batch.Rows != 2 {
		t.Fatalf("batch rows = %d", batch.Rows)
	}

	keys, err := client.Keys(ctx, "/m/run")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "dev" {
		t.Fatalf("keys = %v", keys)
	}

	info, err := client.Node(ctx, "/m/run/dev")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.Rows != 2 || info.Attrs["unit"] != "V" {
		t.Fatalf("info = %+v", info)
	}
}

func TestRemoteErrorsRebuildSentinels(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := client.Node(ctx, "/missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Node missing: err = %v, want ErrNotFound", err)
	}

	payload, err := record.FromArray([]float64{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	if _, err := client.Append(ctx, "/d", payload, nil); err != nil {
		t.Fatalf("seed append: %v", err)
	}
	wrong, err := record.FromArray([]float64{1, 2, 3}, 1, 3)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	if _, err := client.Append(ctx, "/d", wrong, nil); !errors.Is(err, record.ErrIncompatibleSchema) {
		t.Fatalf("schema violation: err = %v, want ErrIncompatibleSchema", err)
	}

	if _, err := client.Keys(ctx, "/d"); !errors.Is(err, store.ErrNotADataset) && !errors.Is(err, store.ErrNotAGroup) {
		t.Fatalf("keys on dataset: err = %v", err)
	}
}

// collectingTarget accumulates deliveries for assertions.
type collectingTarget struct {
	mu      sync.Mutex
	data    []string
	created []string
}

func (c *collectingTarget) OnData(path string, batch *record.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, path)
	return nil
}

func (c *collectingTarget) OnCreated(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, path)
	return nil
}

func (c *collectingTarget) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data), len(c.created)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestRemoteSubscriptions(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	target := &collectingTarget{}
	dataHandle, err := client.Subscribe(ctx, "/m/dev", notify.KindDataset, target)
	if err != nil {
		t.Fatalf("Subscribe dataset: %v", err)
	}
	groupHandle, err := client.Subscribe(ctx, "/m", notify.KindGroup, target)
	if err != nil {
		t.Fatalf("Subscribe group: %v", err)
	}
	if dataHandle == groupHandle {
		t.Fatal("handles collide")
	}

	payload, err := record.FromArray([]float64{1, 2}, 2)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	if _, err := client.Append(ctx, "/m/dev", payload, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Creation produces a created frame for the group subscription and
	// a data frame for the dataset subscription.
	waitUntil(t, 2*time.Second, func() bool {
		nd, nc := target.counts()
		return nd >= 1 && nc >= 1
	})

	if err := client.Unsubscribe(ctx, dataHandle); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	// Unknown handle is a no-op.
	if err := client.Unsubscribe(ctx, "no-such-handle"); err != nil {
		t.Fatalf("Unsubscribe unknown: %v", err)
	}
}

func TestBreakerFailsFastWhenDown(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()
	ctx := context.Background()

	payload, err := record.FromArray([]float64{1}, 1)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	for i := 0; i < 8; i++ {
		if _, err := client.Append(ctx, "/x", payload, nil); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("attempt %d: err = %v, want ErrUnavailable", i, err)
		}
	}
}

func TestSplitWireColumns(t *testing.T) {
	plain, named := splitWireColumns(map[string][]interface{}{"": {1.0, 2.0}})
	if plain == nil || named != nil {
		t.Fatalf("plain split: %v %v", plain, named)
	}
	plain, named = splitWireColumns(map[string][]interface{}{"v": {1.0}, "t": {2.0}})
	if plain != nil || len(named) != 2 {
		t.Fatalf("named split: %v %v", plain, named)
	}
}
