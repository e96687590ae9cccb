// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package instrument

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cryodaq/cryodaq/internal/record"
)

// recordNormalize infers a schema for a payload, the way a first append
// would.
func recordNormalize(p record.Payload) (*record.Batch, error) {
	return record.Normalize(p, nil)
}

// bareDevice implements only Device, no capabilities.
type bareDevice struct{ name string }

func (d *bareDevice) Name() string { return d.name }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	dev := NewSimSource("lockin", 1.0, 50.0, 4)
	if err := r.Register(dev); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Get("lockin")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != Device(dev) {
		t.Error("Get returned a different device")
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Get unknown: err = %v, want ErrUnknownDevice", err)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&bareDevice{name: "magnet"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	err := r.Register(&bareDevice{name: "magnet"})
	if !errors.Is(err, ErrDuplicateDevice) {
		t.Fatalf("err = %v, want ErrDuplicateDevice", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&bareDevice{name: name}); err != nil {
			t.Fatalf("Register %q failed: %v", name, err)
		}
	}
	want := []string{"alpha", "mid", "zeta"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistryCapabilityChecks(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewSimSource("source", 1.0, 10.0, 2)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&bareDevice{name: "dumb"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := r.Status("source"); err != nil {
		t.Errorf("Status(source) failed: %v", err)
	}
	if _, err := r.Sampler("source"); err != nil {
		t.Errorf("Sampler(source) failed: %v", err)
	}
	if _, err := r.Status("dumb"); !errors.Is(err, ErrCapabilityMissing) {
		t.Errorf("Status(dumb): err = %v, want ErrCapabilityMissing", err)
	}
	if _, err := r.Sampler("dumb"); !errors.Is(err, ErrCapabilityMissing) {
		t.Errorf("Sampler(dumb): err = %v, want ErrCapabilityMissing", err)
	}
}

func TestCapabilities(t *testing.T) {
	sim := NewSimSource("s", 1, 1, 1)
	want := []string{CapStatus, CapSample, CapControl}
	if got := Capabilities(sim); !reflect.DeepEqual(got, want) {
		t.Errorf("Capabilities(sim) = %v, want %v", got, want)
	}
	if got := Capabilities(&bareDevice{name: "d"}); len(got) != 0 {
		t.Errorf("Capabilities(bare) = %v, want empty", got)
	}
}

func TestSimSourceDeterministic(t *testing.T) {
	ctx := context.Background()
	a := NewSimSource("a", 2.0, 100.0, 8)
	b := NewSimSource("b", 2.0, 100.0, 8)

	pa, err := a.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	pb, err := b.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	ba, err := recordNormalize(pa)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	bb, err := recordNormalize(pb)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !reflect.DeepEqual(ba.Cols, bb.Cols) {
		t.Error("two identically configured sources produced different data")
	}
	if ba.Rows != 8 {
		t.Errorf("rows = %d, want 8", ba.Rows)
	}
}

func TestSimSourceStatusTracksSamples(t *testing.T) {
	ctx := context.Background()
	s := NewSimSource("s", 1.0, 10.0, 5)
	if _, err := s.Sample(ctx); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	b, err := recordNormalize(p)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	samples, ok := b.Col("samples")
	if !ok {
		t.Fatal("status payload missing samples field")
	}
	if samples.Ints[0] != 5 {
		t.Errorf("samples = %d, want 5", samples.Ints[0])
	}
	armed, ok := b.Col("armed")
	if !ok || !armed.Bools[0] {
		t.Error("armed = false after Start")
	}
}
