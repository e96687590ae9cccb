// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Put(i)
	}
	if got := q.Len(); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		v, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != i {
			t.Errorf("Get #%d = %d, want %d", i, v, i)
		}
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len after drain = %d, want 0", got)
	}
}

func TestQueueFIFOWithConcurrentProducer(t *testing.T) {
	const total = 500
	q := NewQueue[int]()

	go func() {
		for i := 0; i < total; i++ {
			q.Put(i)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < total; i++ {
		v, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
		if v != i {
			t.Fatalf("Get #%d = %d, order broken", i, v)
		}
	}
}

func TestQueueMultipleConsumersDrainAll(t *testing.T) {
	const (
		total     = 1000
		consumers = 4
	)
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		seen  = make(map[int]int, total)
		taken atomic.Int64
		wg    sync.WaitGroup
	)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Get(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
				if taken.Add(1) == total {
					cancel()
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		q.Put(i)
	}
	wg.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("consumers stalled with %d/%d taken", taken.Load(), total)
	}
	if len(seen) != total {
		t.Fatalf("distinct values = %d, want %d", len(seen), total)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("value %d consumed %d times", v, n)
		}
	}
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)

	go func() {
		v, err := q.Get(context.Background())
		if err != nil {
			return
		}
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Get returned %q before Put", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Put("hello")
	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("Get = %q, want hello", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not wake after Put")
	}
}

func TestQueueGetObservesCancellation(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Get err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not observe cancellation")
	}
}

func TestQueuePutNeverBlocks(t *testing.T) {
	q := NewQueue[int]()
	done := make(chan struct{})

	go func() {
		// No consumer anywhere; every Put must still return.
		for i := 0; i < 10000; i++ {
			q.Put(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Put blocked without a consumer")
	}
	if got := q.Len(); got != 10000 {
		t.Errorf("Len = %d, want 10000", got)
	}
}
