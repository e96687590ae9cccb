// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package instrument

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cryodaq/cryodaq/internal/logging"
)

var (
	// ErrDuplicateDevice indicates a Register with an already-taken name.
	ErrDuplicateDevice = errors.New("device name already registered")

	// ErrUnknownDevice indicates a lookup for a name never registered.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrCapabilityMissing indicates an operation requiring a capability
	// the device does not implement.
	ErrCapabilityMissing = errors.New("device capability missing")
)

// Registry is the thread-safe name to driver mapping. Devices register at
// bootstrap; measurement runs and the control API resolve them by name.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Register adds a device under its name. Fails ErrDuplicateDevice when the
// name is taken.
func (r *Registry) Register(dev Device) error {
	name := dev.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateDevice)
	}
	r.devices[name] = dev
	logging.Info().
		Str("device", name).
		Strs("capabilities", Capabilities(dev)).
		Msg("device registered")
	return nil
}

// Get resolves a device by name.
func (r *Registry) Get(name string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("device %q: %w", name, ErrUnknownDevice)
	}
	return dev, nil
}

// Status resolves a device and requires its StatusProvider capability.
func (r *Registry) Status(name string) (StatusProvider, error) {
	dev, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	sp, ok := dev.(StatusProvider)
	if !ok {
		return nil, fmt.Errorf("device %q has no status capability: %w", name, ErrCapabilityMissing)
	}
	return sp, nil
}

// Sampler resolves a device and requires its Sampler capability.
func (r *Registry) Sampler(name string) (Sampler, error) {
	dev, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	s, ok := dev.(Sampler)
	if !ok {
		return nil, fmt.Errorf("device %q has no sample capability: %w", name, ErrCapabilityMissing)
	}
	return s, nil
}

// Names returns the sorted registered device names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatusProviders returns every registered device with the status
// capability, sorted by name. The status collector iterates this set each
// cycle, so devices registered mid-run join the next cycle automatically.
func (r *Registry) StatusProviders() []StatusProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []StatusProvider
	for _, dev := range r.devices {
		if sp, ok := dev.(StatusProvider); ok {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
