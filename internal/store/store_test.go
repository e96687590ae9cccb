// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
)

// captureSink records emitted events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureSink) Put(ev notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) all() []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Event, len(c.events))
	copy(out, c.events)
	return out
}

func newMemStore(t *testing.T) (*Store, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	s, err := Open(Config{InMemory: true}, sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, sink
}

func jsonPayload(t *testing.T, doc string) record.Payload {
	t.Helper()
	p, err := record.FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON(%s): %v", doc, err)
	}
	return p
}

func mustAppend(t *testing.T, s *Store, path, doc string) {
	t.Helper()
	if _, err := s.Append(path, jsonPayload(t, doc), nil); err != nil {
		t.Fatalf("Append(%s, %s): %v", path, doc, err)
	}
}

func intPtr(v int) *int { return &v }

func TestAppendCreatesCompoundDataset(t *testing.T) {
	s, _ := newMemStore(t)

	res, err := s.Append("/m/dev1", jsonPayload(t, `{"x": 1.0, "y": 2.0}`), nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !res.Created {
		t.Error("Created = false, want true for first append")
	}
	if res.Rows != 1 || res.Total != 1 {
		t.Errorf("result = %d rows, %d total, want 1, 1", res.Rows, res.Total)
	}
	if res.Path != "/m/dev1" {
		t.Errorf("result path = %q, want /m/dev1", res.Path)
	}

	info, err := s.Node("/m/dev1")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.Kind != NodeDataset {
		t.Errorf("kind = %s, want dataset", info.Kind)
	}
	if info.Rows != 1 {
		t.Errorf("rows = %d, want 1", info.Rows)
	}
	if len(info.Schema.Fields) != 2 {
		t.Fatalf("schema fields = %d, want 2", len(info.Schema.Fields))
	}
	for i, want := range []string{"x", "y"} {
		f := info.Schema.Fields[i]
		if f.Name != want || f.Kind != record.KindFloat64 {
			t.Errorf("field %d = {%s %s}, want {%s float64}", i, f.Name, f.Kind, want)
		}
	}

	attrs, err := s.Attrs("/m/dev1")
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}
	created, ok := attrs["created_on"].(string)
	if !ok {
		t.Fatalf("created_on missing or not a string: %v", attrs["created_on"])
	}
	if _, err := time.Parse(time.RFC3339, created); err != nil {
		t.Errorf("created_on %q is not RFC3339: %v", created, err)
	}
}

func TestAppendExtendsPreservingOrder(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/m/dev1", `{"x": 1.0, "y": 2.0}`)

	res, err := s.Append("/m/dev1", jsonPayload(t, `{"x": [1.0, 1.1], "y": [2.0, 2.1]}`), nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if res.Created {
		t.Error("Created = true, want false for extend")
	}
	if res.Rows != 2 || res.Total != 3 {
		t.Errorf("result = %d rows, %d total, want 2, 3", res.Rows, res.Total)
	}

	b, err := s.Values("/m/dev1", nil, nil, "")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if b.Rows != 3 {
		t.Fatalf("rows = %d, want 3", b.Rows)
	}
	x, _ := b.Col("x")
	y, _ := b.Col("y")
	wantX := []float64{1.0, 1.0, 1.1}
	wantY := []float64{2.0, 2.0, 2.1}
	for i := range wantX {
		if x.Floats[i] != wantX[i] || y.Floats[i] != wantY[i] {
			t.Errorf("row %d = (%v, %v), want (%v, %v)", i, x.Floats[i], y.Floats[i], wantX[i], wantY[i])
		}
	}
}

func TestAppendPlainArrayFreezesShape(t *testing.T) {
	s, _ := newMemStore(t)

	vals := make([]float64, 15)
	for i := range vals {
		vals[i] = float64(i)
	}
	p, err := record.FromArray(vals, 5, 3)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	if _, err := s.Append("/raw/a", p, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	info, err := s.Node("/raw/a")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.Rows != 5 {
		t.Errorf("rows = %d, want 5", info.Rows)
	}
	if info.Schema.Compound() {
		t.Fatal("plain dataset reported a compound schema")
	}
	if len(info.Schema.Shape) != 1 || info.Schema.Shape[0] != 3 {
		t.Errorf("shape = %v, want [3]", info.Schema.Shape)
	}

	bad, err := record.FromArray(make([]float64, 8), 2, 4)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	if _, err := s.Append("/raw/a", bad, nil); !errors.Is(err, record.ErrIncompatibleSchema) {
		t.Fatalf("mismatched shape: err = %v, want ErrIncompatibleSchema", err)
	}

	info, _ = s.Node("/raw/a")
	if info.Rows != 5 {
		t.Errorf("rows after failed append = %d, want 5", info.Rows)
	}
}

func TestAppendEmptyPayloadIsNoOp(t *testing.T) {
	s, sink := newMemStore(t)

	for _, doc := range []string{`[]`, `{}`, `{"x": []}`} {
		res, err := s.Append("/m/empty", jsonPayload(t, doc), map[string]interface{}{"k": "v"})
		if err != nil {
			t.Fatalf("Append(%s): %v", doc, err)
		}
		if res.Rows != 0 || res.Created {
			t.Errorf("Append(%s) result = %+v, want zero rows, not created", doc, res)
		}
	}

	if _, err := s.Node("/m/empty"); !errors.Is(err, ErrNotFound) {
		t.Errorf("node exists after empty appends: %v", err)
	}
	if evs := sink.all(); len(evs) != 0 {
		t.Errorf("empty appends emitted %d events", len(evs))
	}
}

func TestAppendSchemaFrozen(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/m/dev1", `{"x": 1.0}`)

	cases := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"int widens to float", `{"x": 2}`, true},
		{"extra field ignored", `{"x": 3.0, "extra": 9}`, true},
		{"kind mismatch", `{"x": "volts"}`, false},
		{"missing field", `{"y": 1.0}`, false},
		{"shape mismatch", `{"x": [[1.0, 2.0]]}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Append("/m/dev1", jsonPayload(t, tc.doc), nil)
			if tc.ok && err != nil {
				t.Fatalf("Append(%s): %v", tc.doc, err)
			}
			if !tc.ok && !errors.Is(err, record.ErrIncompatibleSchema) {
				t.Fatalf("Append(%s): err = %v, want ErrIncompatibleSchema", tc.doc, err)
			}
		})
	}

	info, err := s.Node("/m/dev1")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.Rows != 3 {
		t.Errorf("rows = %d, want 3", info.Rows)
	}
}

func TestAppendToGroupFails(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/a/b/c", `{"v": 1.0}`)

	if _, err := s.Append("/a/b", jsonPayload(t, `{"v": 1.0}`), nil); !errors.Is(err, ErrNotADataset) {
		t.Errorf("append to group: err = %v, want ErrNotADataset", err)
	}
	if _, err := s.Append("/", jsonPayload(t, `{"v": 1.0}`), nil); !errors.Is(err, ErrNotADataset) {
		t.Errorf("append to root: err = %v, want ErrNotADataset", err)
	}
}

func TestAppendBelowDatasetFails(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/a/b", `{"v": 1.0}`)

	if _, err := s.Append("/a/b/c", jsonPayload(t, `{"v": 1.0}`), nil); !errors.Is(err, ErrNotAGroup) {
		t.Errorf("append below dataset: err = %v, want ErrNotAGroup", err)
	}
}

func TestAppendInvalidPath(t *testing.T) {
	s, _ := newMemStore(t)

	for _, path := range []string{"", "m/dev1", "/a|b", "//dev1", "/a//b"} {
		if _, err := s.Append(path, jsonPayload(t, `{"v": 1.0}`), nil); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Append(%q): err = %v, want ErrInvalidPath", path, err)
		}
	}
}

func TestCreationEmitsCreatedThenBatch(t *testing.T) {
	s, sink := newMemStore(t)
	mustAppend(t, s, "/m/dev1", `{"x": 1.0}`)

	evs := sink.all()
	if len(evs) != 2 {
		t.Fatalf("creation emitted %d events, want 2", len(evs))
	}
	if !evs[0].Created || evs[0].Batch != nil || evs[0].Path != "/m/dev1" {
		t.Errorf("first event = %+v, want created event for /m/dev1", evs[0])
	}
	if evs[1].Created || evs[1].Batch == nil || evs[1].Batch.Rows != 1 {
		t.Errorf("second event = %+v, want 1-row batch event", evs[1])
	}

	mustAppend(t, s, "/m/dev1", `{"x": [2.0, 3.0]}`)
	evs = sink.all()
	if len(evs) != 3 {
		t.Fatalf("extend emitted %d extra events, want 1", len(evs)-2)
	}
	if evs[2].Created || evs[2].Batch == nil || evs[2].Batch.Rows != 2 {
		t.Errorf("extend event = %+v, want 2-row batch event", evs[2])
	}
}

func TestStampFailureStillEmitsEvents(t *testing.T) {
	s, sink := newMemStore(t)

	// A channel is not JSON-encodable, so the attrs stamping fails after
	// the rows committed. The committed write must still emit its events
	// and report its result.
	res, err := s.Append("/m/dev1", jsonPayload(t, `{"x": 1.0}`), map[string]interface{}{
		"bad": make(chan int),
	})
	if err == nil {
		t.Fatal("Append = nil error, want attrs stamping failure")
	}
	if !res.Created || res.Rows != 1 {
		t.Errorf("result = %+v, want created 1-row append", res)
	}

	evs := sink.all()
	if len(evs) != 2 {
		t.Fatalf("emitted %d events, want created + batch", len(evs))
	}
	if !evs[0].Created || evs[1].Batch == nil {
		t.Errorf("events = %+v, want created then batch", evs)
	}

	info, err := s.Node("/m/dev1")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if info.Rows != 1 {
		t.Errorf("Rows = %d, want 1 (write committed)", info.Rows)
	}
}

func TestAutoCreatedParentGroups(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/run/sub/dev1", `{"v": 1.0}`)

	for _, path := range []string{"/run", "/run/sub"} {
		info, err := s.Node(path)
		if err != nil {
			t.Fatalf("Node(%s): %v", path, err)
		}
		if info.Kind != NodeGroup {
			t.Errorf("Node(%s).Kind = %s, want group", path, info.Kind)
		}
	}

	keys, err := s.Keys("/")
	if err != nil {
		t.Fatalf("Keys(/): %v", err)
	}
	if len(keys) != 1 || keys[0] != "run" {
		t.Errorf("Keys(/) = %v, want [run]", keys)
	}
}

func TestKeysSorted(t *testing.T) {
	s, _ := newMemStore(t)
	for _, name := range []string{"c", "a", "b"} {
		mustAppend(t, s, "/g/"+name, `{"v": 1.0}`)
	}

	keys, err := s.Keys("/g")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}

func TestKeysErrors(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/g/d", `{"v": 1.0}`)

	if _, err := s.Keys("/g/d"); !errors.Is(err, ErrNotAGroup) {
		t.Errorf("Keys on dataset: err = %v, want ErrNotAGroup", err)
	}
	if _, err := s.Keys("/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Keys on missing: err = %v, want ErrNotFound", err)
	}
}

func TestNodeNotFound(t *testing.T) {
	s, _ := newMemStore(t)
	if _, err := s.Node("/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAttrsMergeAcrossAppends(t *testing.T) {
	s, _ := newMemStore(t)

	if _, err := s.Append("/m/dev1", jsonPayload(t, `{"x": 1.0}`), map[string]interface{}{"units": "V"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first, err := s.Attrs("/m/dev1")
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}

	if _, err := s.Append("/m/dev1", jsonPayload(t, `{"x": 2.0}`), map[string]interface{}{"gain": 2.0}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	attrs, err := s.Attrs("/m/dev1")
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}

	if attrs["units"] != "V" {
		t.Errorf("units = %v, want V", attrs["units"])
	}
	if attrs["gain"] != 2.0 {
		t.Errorf("gain = %v, want 2", attrs["gain"])
	}
	if attrs["created_on"] != first["created_on"] {
		t.Errorf("created_on changed across appends: %v -> %v", first["created_on"], attrs["created_on"])
	}

	if _, err := s.Attrs("/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Attrs on missing: err = %v, want ErrNotFound", err)
	}
	groupAttrs, err := s.Attrs("/m")
	if err != nil {
		t.Fatalf("Attrs on group: %v", err)
	}
	if len(groupAttrs) != 0 {
		t.Errorf("fresh group attrs = %v, want empty", groupAttrs)
	}
}

func TestValuesSlicing(t *testing.T) {
	s, _ := newMemStore(t)
	// Three appends so reads cross block boundaries.
	mustAppend(t, s, "/m/dev1", `{"x": 0.0, "y": 10.0}`)
	mustAppend(t, s, "/m/dev1", `{"x": [1.0, 2.0], "y": [11.0, 12.0]}`)
	mustAppend(t, s, "/m/dev1", `{"x": [3.0, 4.0], "y": [13.0, 14.0]}`)

	cases := []struct {
		name  string
		start *int
		stop  *int
		want  []float64
	}{
		{"full range", nil, nil, []float64{0, 1, 2, 3, 4}},
		{"inner span", intPtr(1), intPtr(4), []float64{1, 2, 3}},
		{"negative start", intPtr(-2), nil, []float64{3, 4}},
		{"negative stop", nil, intPtr(-1), []float64{0, 1, 2, 3}},
		{"clamped", intPtr(-100), intPtr(100), []float64{0, 1, 2, 3, 4}},
		{"inverted is empty", intPtr(3), intPtr(2), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := s.Values("/m/dev1", tc.start, tc.stop, "")
			if err != nil {
				t.Fatalf("Values: %v", err)
			}
			if b.Rows != len(tc.want) {
				t.Fatalf("rows = %d, want %d", b.Rows, len(tc.want))
			}
			x, ok := b.Col("x")
			if !ok {
				t.Fatal("column x missing")
			}
			for i, want := range tc.want {
				if x.Floats[i] != want {
					t.Errorf("x[%d] = %v, want %v", i, x.Floats[i], want)
				}
			}
		})
	}
}

func TestValuesFieldSelection(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/m/dev1", `{"x": [1.0, 2.0], "y": [3.0, 4.0]}`)

	b, err := s.Values("/m/dev1", nil, nil, "y")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(b.Schema.Fields) != 1 || b.Schema.Fields[0].Name != "y" {
		t.Fatalf("schema = %+v, want single field y", b.Schema)
	}
	if len(b.Cols) != 1 || b.Cols[0].Floats[0] != 3.0 || b.Cols[0].Floats[1] != 4.0 {
		t.Errorf("y column = %+v, want [3 4]", b.Cols[0])
	}

	if _, err := s.Values("/m/dev1", nil, nil, "z"); !errors.Is(err, record.ErrUnknownField) {
		t.Errorf("unknown field: err = %v, want ErrUnknownField", err)
	}

	p, err := record.FromArray([]float64{1, 2, 3}, 3)
	if err != nil {
		t.Fatalf("FromArray: %v", err)
	}
	if _, err := s.Append("/raw/a", p, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Values("/raw/a", nil, nil, "x"); !errors.Is(err, record.ErrUnknownField) {
		t.Errorf("field on plain dataset: err = %v, want ErrUnknownField", err)
	}
}

func TestValuesErrors(t *testing.T) {
	s, _ := newMemStore(t)
	mustAppend(t, s, "/g/d", `{"v": 1.0}`)

	if _, err := s.Values("/g", nil, nil, ""); !errors.Is(err, ErrNotADataset) {
		t.Errorf("Values on group: err = %v, want ErrNotADataset", err)
	}
	if _, err := s.Values("/nope", nil, nil, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Values on missing: err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAppendsToOnePath(t *testing.T) {
	s, _ := newMemStore(t)

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := fmt.Sprintf(`{"v": %d.0}`, i)
			p, err := record.FromJSON([]byte(doc))
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = s.Append("/m/shared", p, nil)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	b, err := s.Values("/m/shared", nil, nil, "")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if b.Rows != writers {
		t.Fatalf("rows = %d, want %d", b.Rows, writers)
	}
	v, _ := b.Col("v")
	seen := make(map[float64]bool, writers)
	for _, f := range v.Floats {
		if seen[f] {
			t.Errorf("value %v appended twice", f)
		}
		seen[f] = true
	}
	if len(seen) != writers {
		t.Errorf("distinct values = %d, want %d", len(seen), writers)
	}
}

func TestReopenRecoversIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run.cryo")

	s, err := Open(Config{Path: dir}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Append("/m/dev1", jsonPayload(t, `{"x": [1.0, 2.0]}`), map[string]interface{}{"units": "V"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	mustAppend(t, s, "/raw/b", `[[1.0, 2.0], [3.0, 4.0]]`)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(Config{Path: dir}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	info, err := s.Node("/m/dev1")
	if err != nil {
		t.Fatalf("Node after reopen: %v", err)
	}
	if info.Rows != 2 || info.Kind != NodeDataset {
		t.Errorf("recovered node = %+v, want 2-row dataset", info)
	}

	keys, err := s.Keys("/")
	if err != nil {
		t.Fatalf("Keys after reopen: %v", err)
	}
	if len(keys) != 2 || keys[0] != "m" || keys[1] != "raw" {
		t.Errorf("Keys(/) = %v, want [m raw]", keys)
	}

	attrs, err := s.Attrs("/m/dev1")
	if err != nil {
		t.Fatalf("Attrs after reopen: %v", err)
	}
	if attrs["units"] != "V" {
		t.Errorf("units = %v, want V", attrs["units"])
	}

	// The recovered schema still gates appends.
	mustAppend(t, s, "/m/dev1", `{"x": 3.0}`)
	if _, err := s.Append("/m/dev1", jsonPayload(t, `{"x": "bad"}`), nil); !errors.Is(err, record.ErrIncompatibleSchema) {
		t.Errorf("append after reopen: err = %v, want ErrIncompatibleSchema", err)
	}

	b, err := s.Values("/m/dev1", nil, nil, "")
	if err != nil {
		t.Fatalf("Values after reopen: %v", err)
	}
	if b.Rows != 3 {
		t.Errorf("rows = %d, want 3", b.Rows)
	}
}

func TestClosedStoreFails(t *testing.T) {
	s, _ := newMemStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := s.Append("/m/d", jsonPayload(t, `{"v": 1.0}`), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Append: err = %v, want ErrClosed", err)
	}
	if _, err := s.Node("/"); !errors.Is(err, ErrClosed) {
		t.Errorf("Node: err = %v, want ErrClosed", err)
	}
	if _, err := s.Keys("/"); !errors.Is(err, ErrClosed) {
		t.Errorf("Keys: err = %v, want ErrClosed", err)
	}
	if _, err := s.Attrs("/"); !errors.Is(err, ErrClosed) {
		t.Errorf("Attrs: err = %v, want ErrClosed", err)
	}
	if _, err := s.Values("/m/d", nil, nil, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Values: err = %v, want ErrClosed", err)
	}
}
