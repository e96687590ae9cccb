// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// counterDelta runs f and returns how much the counter moved. Collectors
// are package-global, so tests assert deltas rather than absolute values.
func counterDelta(t *testing.T, c prometheus.Counter, f func()) float64 {
	t.Helper()
	before := testutil.ToFloat64(c)
	f()
	return testutil.ToFloat64(c) - before
}

func TestRecordAppend(t *testing.T) {
	tests := []struct {
		name    string
		created bool
		rows    int
		err     error
		label   string
	}{
		{"creation", true, 1, nil, "created"},
		{"extend", false, 10, nil, "extended"},
		{"failure", false, 0, errors.New("schema mismatch"), "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := counterDelta(t, StoreAppends.WithLabelValues(tc.label), func() {
				RecordAppend(tc.created, tc.rows, time.Millisecond, tc.err)
			})
			if got != 1 {
				t.Errorf("StoreAppends{%s} delta = %v, want 1", tc.label, got)
			}
		})
	}
}

func TestRecordAppendRows(t *testing.T) {
	got := counterDelta(t, StoreAppendRows, func() {
		RecordAppend(false, 7, time.Millisecond, nil)
	})
	if got != 7 {
		t.Errorf("StoreAppendRows delta = %v, want 7", got)
	}

	got = counterDelta(t, StoreAppendRows, func() {
		RecordAppend(false, 7, time.Millisecond, errors.New("boom"))
	})
	if got != 0 {
		t.Errorf("failed append moved StoreAppendRows by %v", got)
	}
}

func TestRecordRead(t *testing.T) {
	got := counterDelta(t, StoreReads.WithLabelValues("values", "ok"), func() {
		RecordRead("values", nil)
	})
	if got != 1 {
		t.Errorf("StoreReads{values,ok} delta = %v, want 1", got)
	}
	got = counterDelta(t, StoreReads.WithLabelValues("node", "error"), func() {
		RecordRead("node", errors.New("not found"))
	})
	if got != 1 {
		t.Errorf("StoreReads{node,error} delta = %v, want 1", got)
	}
}

func TestRecordDelivery(t *testing.T) {
	for _, result := range []string{"ok", "error", "unreachable"} {
		got := counterDelta(t, NotifyDeliveries.WithLabelValues(result), func() {
			RecordDelivery(result)
		})
		if got != 1 {
			t.Errorf("NotifyDeliveries{%s} delta = %v, want 1", result, got)
		}
	}
}

func TestUpdateSubscriptions(t *testing.T) {
	UpdateSubscriptions(3, 2)
	if got := testutil.ToFloat64(SubscriptionsActive.WithLabelValues("dataset")); got != 3 {
		t.Errorf("dataset gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(SubscriptionsActive.WithLabelValues("group")); got != 2 {
		t.Errorf("group gauge = %v, want 2", got)
	}
}

func TestUpdateNotifyQueueDepth(t *testing.T) {
	UpdateNotifyQueueDepth(42)
	if got := testutil.ToFloat64(NotifyQueueDepth); got != 42 {
		t.Errorf("queue depth gauge = %v, want 42", got)
	}
	UpdateNotifyQueueDepth(0)
	if got := testutil.ToFloat64(NotifyQueueDepth); got != 0 {
		t.Errorf("queue depth gauge = %v, want 0", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	got := counterDelta(t, HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/data/values", "200"), func() {
		RecordHTTPRequest("GET", "/api/v1/data/values", 200, 5*time.Millisecond)
	})
	if got != 1 {
		t.Errorf("HTTPRequestsTotal delta = %v, want 1", got)
	}
}

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsInFlight)
	TrackInFlight(true)
	TrackInFlight(true)
	if got := testutil.ToFloat64(HTTPRequestsInFlight) - before; got != 2 {
		t.Errorf("in-flight delta after two increments = %v, want 2", got)
	}
	TrackInFlight(false)
	TrackInFlight(false)
	if got := testutil.ToFloat64(HTTPRequestsInFlight) - before; got != 0 {
		t.Errorf("in-flight delta after balance = %v, want 0", got)
	}
}

func TestRecordBridgePublish(t *testing.T) {
	for _, result := range []string{"ok", "error", "dropped"} {
		got := counterDelta(t, BridgePublishes.WithLabelValues(result), func() {
			RecordBridgePublish(result)
		})
		if got != 1 {
			t.Errorf("BridgePublishes{%s} delta = %v, want 1", result, got)
		}
	}
}
