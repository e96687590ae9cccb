// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package websocket

// Client frame actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Server frame types.
const (
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeData         = "data"
	TypeCreated      = "created"
	TypeError        = "error"
)

// ClientMessage is one frame read from a subscriber connection.
type ClientMessage struct {
	// Action is "subscribe" or "unsubscribe".
	Action string `json:"action"`

	// Path is the node path to subscribe to. Subscribe only.
	Path string `json:"path,omitempty"`

	// Group selects a group (prefix) subscription instead of a dataset
	// subscription. Subscribe only.
	Group bool `json:"group,omitempty"`

	// ID is the subscription to remove. Unsubscribe only.
	ID string `json:"id,omitempty"`
}

// ServerMessage is one frame pushed to a subscriber connection.
type ServerMessage struct {
	Type string `json:"type"`

	// Path identifies the dataset for data and created frames.
	Path string `json:"path,omitempty"`

	// ID is the subscription id for subscribed and unsubscribed frames.
	ID string `json:"id,omitempty"`

	// Rows is the row count of the delivered batch. Data frames only.
	Rows int `json:"rows,omitempty"`

	// Columns holds the delivered batch as field name to row values.
	// Plain datasets use the single key "". Data frames only.
	Columns map[string][]interface{} `json:"columns,omitempty"`

	// Message carries the error text for error frames.
	Message string `json:"message,omitempty"`
}
