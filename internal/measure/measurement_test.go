// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package measure

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/instrument"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// appendCall is one recorded Append.
type appendCall struct {
	path    string
	payload record.Payload
}

// fakeAPI records appends and can be told to fail them.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []appendCall
	failN   int // fail the next failN appends
	failErr error
}

func (f *fakeAPI) Append(_ context.Context, path string, payload record.Payload, _ map[string]interface{}) (store.AppendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return store.AppendResult{}, f.failErr
	}
	f.calls = append(f.calls, appendCall{path: path, payload: payload})
	return store.AppendResult{Path: path}, nil
}

func (f *fakeAPI) Node(context.Context, string) (dataserver.NodeInfo, error) {
	return dataserver.NodeInfo{}, nil
}

func (f *fakeAPI) Values(context.Context, string, *int, *int, string) (*record.Batch, error) {
	return nil, nil
}

func (f *fakeAPI) Keys(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakeAPI) Subscribe(context.Context, string, notify.Kind, notify.Target) (string, error) {
	return "", nil
}

func (f *fakeAPI) Unsubscribe(context.Context, string) error { return nil }

func (f *fakeAPI) recorded() []appendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]appendCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) countFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.path == path {
			n++
		}
	}
	return n
}

func newTestRegistry(t *testing.T, devices ...instrument.Device) *instrument.Registry {
	t.Helper()
	reg := instrument.NewRegistry()
	for _, dev := range devices {
		if err := reg.Register(dev); err != nil {
			t.Fatalf("Register(%q): %v", dev.Name(), err)
		}
	}
	return reg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestRunnerStartAndStop(t *testing.T) {
	api := &fakeAPI{}
	reg := newTestRegistry(t,
		instrument.NewSimSource("lockin", 1.0, 5.0, 4),
		instrument.NewSimSource("magnet", 0.5, 0.1, 4),
	)
	r := NewRunner(api, reg, time.Millisecond)

	info, err := r.Start("sweep1", []string{"lockin", "magnet"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info.Name != "sweep1" || len(info.Devices) != 2 {
		t.Fatalf("unexpected run info: %+v", info)
	}

	waitFor(t, 2*time.Second, func() bool {
		return api.countFor("/measurement/sweep1/lockin") >= 2 &&
			api.countFor("/measurement/sweep1/magnet") >= 2
	})

	if err := r.Stop("sweep1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := len(r.List()); got != 0 {
		t.Fatalf("List after Stop = %d runs, want 0", got)
	}
}

func TestRunnerRejectsUnknownDevice(t *testing.T) {
	api := &fakeAPI{}
	reg := newTestRegistry(t, instrument.NewSimSource("lockin", 1.0, 5.0, 4))
	r := NewRunner(api, reg, time.Millisecond)

	_, err := r.Start("bad", []string{"lockin", "ghost"})
	if !errors.Is(err, instrument.ErrUnknownDevice) {
		t.Fatalf("Start with unknown device: err = %v, want ErrUnknownDevice", err)
	}
	if got := len(r.List()); got != 0 {
		t.Fatalf("failed Start left %d runs behind", got)
	}
}

func TestRunnerRejectsEmptyDeviceList(t *testing.T) {
	r := NewRunner(&fakeAPI{}, newTestRegistry(t), time.Millisecond)
	if _, err := r.Start("empty", nil); !errors.Is(err, ErrNoDevices) {
		t.Fatalf("err = %v, want ErrNoDevices", err)
	}
}

func TestRunnerRejectsDuplicateRun(t *testing.T) {
	api := &fakeAPI{}
	reg := newTestRegistry(t, instrument.NewSimSource("lockin", 1.0, 5.0, 4))
	r := NewRunner(api, reg, time.Millisecond)

	if _, err := r.Start("twice", []string{"lockin"}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer r.StopAll()

	if _, err := r.Start("twice", []string{"lockin"}); !errors.Is(err, ErrRunExists) {
		t.Fatalf("second Start: err = %v, want ErrRunExists", err)
	}
}

func TestRunnerStopUnknownRun(t *testing.T) {
	r := NewRunner(&fakeAPI{}, newTestRegistry(t), time.Millisecond)
	if err := r.Stop("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRunnerListSorted(t *testing.T) {
	api := &fakeAPI{}
	reg := newTestRegistry(t,
		instrument.NewSimSource("a", 1.0, 1.0, 2),
		instrument.NewSimSource("b", 1.0, 1.0, 2),
	)
	r := NewRunner(api, reg, time.Millisecond)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := r.Start(name, []string{"a", "b"}); err != nil {
			t.Fatalf("Start(%q): %v", name, err)
		}
	}
	defer r.StopAll()

	runs := r.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(runs) != len(want) {
		t.Fatalf("List = %d runs, want %d", len(runs), len(want))
	}
	for i, name := range want {
		if runs[i].Name != name {
			t.Fatalf("List[%d] = %q, want %q", i, runs[i].Name, name)
		}
	}
}

func TestRunnerAppendFailureEndsRun(t *testing.T) {
	api := &fakeAPI{failN: 1 << 30, failErr: errors.New("store offline")}
	reg := newTestRegistry(t, instrument.NewSimSource("lockin", 1.0, 5.0, 4))
	r := NewRunner(api, reg, time.Millisecond)

	if _, err := r.Start("doomed", []string{"lockin"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(r.List()) == 0 })
}
