// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package bridge

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/cryodaq/cryodaq/internal/notify"
)

// StoreEvent is the wire form of one store notification. Appended events
// carry the converted batch as JSON-ready column values; created events
// carry only the path.
type StoreEvent struct {
	ID        string                   `json:"id"`
	Path      string                   `json:"path"`
	Created   bool                     `json:"created"`
	Rows      int                      `json:"rows,omitempty"`
	Values    map[string][]interface{} `json:"values,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// Validate checks the fields every consumer relies on.
func (e *StoreEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("store event missing id")
	}
	if e.Path == "" {
		return fmt.Errorf("store event missing path")
	}
	if !e.Created && e.Rows <= 0 {
		return fmt.Errorf("appended event %s carries no rows", e.ID)
	}
	return nil
}

// Subject returns the JetStream subject for this event under prefix.
func (e *StoreEvent) Subject(cfg Config) string {
	if e.Created {
		return cfg.SubjectCreated()
	}
	return cfg.SubjectAppended()
}

// FromNotify converts a dispatcher event into its wire form. id becomes
// the Nats-Msg-Id, so it must be unique per event.
func FromNotify(ev notify.Event, id string, now time.Time) *StoreEvent {
	out := &StoreEvent{
		ID:        id,
		Path:      ev.Path,
		Created:   ev.Created,
		Timestamp: now.UTC(),
	}
	if ev.Batch != nil {
		out.Rows = ev.Batch.Rows
		out.Values = ev.Batch.ColumnValues()
	}
	return out
}

// Serializer encodes store events for NATS messages.
type Serializer struct{}

// NewSerializer returns a serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal validates and encodes an event to JSON.
func (s *Serializer) Marshal(event *StoreEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON into an event.
func (s *Serializer) Unmarshal(data []byte) (*StoreEvent, error) {
	var event StoreEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}
