// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package notify

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cryodaq/cryodaq/internal/record"
)

// seqSource is a deterministic IDSource for tests.
type seqSource struct {
	n atomic.Int64
}

func (s *seqSource) NewID() string {
	return fmt.Sprintf("sub-%d", s.n.Add(1))
}

func noopData(string, *record.Batch) error { return nil }
func noopCreated(string) error             { return nil }

func TestSubscribeUsesInjectedIDSource(t *testing.T) {
	r := NewRegistry(&seqSource{})

	if id := r.Subscribe("/a", DataFunc(noopData), KindDataset); id != "sub-1" {
		t.Errorf("first id = %q, want sub-1", id)
	}
	if id := r.Subscribe("/a", CreatedFunc(noopCreated), KindGroup); id != "sub-2" {
		t.Errorf("second id = %q, want sub-2", id)
	}
}

func TestSubscribeDefaultIDsAreUnique(t *testing.T) {
	r := NewRegistry(nil)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.Subscribe("/a", DataFunc(noopData), KindDataset)
		if seen[id] {
			t.Fatalf("id %q issued twice", id)
		}
		seen[id] = true
	}
}

func TestUnsubscribeSilentOnUnknownID(t *testing.T) {
	r := NewRegistry(&seqSource{})
	id := r.Subscribe("/a", DataFunc(noopData), KindDataset)

	r.Unsubscribe(id)
	r.Unsubscribe(id)
	r.Unsubscribe("never-issued")

	if ds, gr := r.Count(); ds != 0 || gr != 0 {
		t.Errorf("Count = (%d, %d), want (0, 0)", ds, gr)
	}
}

func TestUnsubscribeRemovesGroupKind(t *testing.T) {
	r := NewRegistry(&seqSource{})
	id := r.Subscribe("/a", CreatedFunc(noopCreated), KindGroup)

	if ds, gr := r.Count(); ds != 0 || gr != 1 {
		t.Fatalf("Count = (%d, %d), want (0, 1)", ds, gr)
	}
	r.Unsubscribe(id)
	if ds, gr := r.Count(); ds != 0 || gr != 0 {
		t.Errorf("Count = (%d, %d), want (0, 0)", ds, gr)
	}
}

func TestMatchDatasetExactOnly(t *testing.T) {
	r := NewRegistry(&seqSource{})
	r.Subscribe("/a/b", DataFunc(noopData), KindDataset)

	if got := len(r.matchDataset("/a/b")); got != 1 {
		t.Errorf("exact match count = %d, want 1", got)
	}
	for _, path := range []string{"/a", "/a/b/c", "/a/bc"} {
		if got := len(r.matchDataset(path)); got != 0 {
			t.Errorf("matchDataset(%q) = %d subs, want 0", path, got)
		}
	}
}

func TestMatchGroupByPrefix(t *testing.T) {
	r := NewRegistry(&seqSource{})
	r.Subscribe("/a", CreatedFunc(noopCreated), KindGroup)
	r.Subscribe("/a/b", CreatedFunc(noopCreated), KindGroup)
	r.Subscribe("/other", CreatedFunc(noopCreated), KindGroup)

	// Both prefix levels match the deep path.
	if got := len(r.matchGroup("/a/b/c")); got != 2 {
		t.Errorf("matchGroup(/a/b/c) = %d subs, want 2", got)
	}
	if got := len(r.matchGroup("/a/x")); got != 1 {
		t.Errorf("matchGroup(/a/x) = %d subs, want 1", got)
	}
	if got := len(r.matchGroup("/elsewhere")); got != 0 {
		t.Errorf("matchGroup(/elsewhere) = %d subs, want 0", got)
	}
}

func TestClearDropsBothKinds(t *testing.T) {
	r := NewRegistry(&seqSource{})
	r.Subscribe("/a", DataFunc(noopData), KindDataset)
	r.Subscribe("/a", CreatedFunc(noopCreated), KindGroup)

	r.clear()
	if ds, gr := r.Count(); ds != 0 || gr != 0 {
		t.Errorf("Count after clear = (%d, %d), want (0, 0)", ds, gr)
	}
}
