// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/websocket"
)

// Reconnect backoff bounds.
const (
	reconnectInitial = 500 * time.Millisecond
	reconnectMax     = 15 * time.Second
)

// ackTimeout bounds the wait for a subscribe acknowledgement.
const ackTimeout = 10 * time.Second

// subscription is one live client-side subscription. serverID changes
// on every reconnect; handle never does.
type subscription struct {
	handle   string
	path     string
	kind     notify.Kind
	target   notify.Target
	serverID string
}

// subscriptionManager owns the WebSocket connection and the handle
// table. One connection carries all subscriptions.
type subscriptionManager struct {
	client *Client

	mu      sync.Mutex
	subs    map[string]*subscription
	conn    *gorillaws.Conn
	writeMu sync.Mutex
	acks    []chan string // FIFO of waiters for subscribed frames
	closed  bool
}

func newSubscriptionManager(c *Client) *subscriptionManager {
	return &subscriptionManager{
		client: c,
		subs:   make(map[string]*subscription),
	}
}

// wsURL derives the subscribe endpoint URL from the HTTP base.
func (m *subscriptionManager) wsURL() string {
	base := m.client.base
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v1/data/subscribe"
}

// connectLocked dials the subscribe endpoint and starts the read loop.
// Caller holds m.mu.
func (m *subscriptionManager) connectLocked() error {
	if m.conn != nil {
		return nil
	}

	header := http.Header{}
	if m.client.token != "" {
		header.Set("Authorization", "Bearer "+m.client.token)
	} else if m.client.user != "" {
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth(m.client.user, m.client.pass)
		header.Set("Authorization", req.Header.Get("Authorization"))
	}

	conn, _, err := gorillaws.DefaultDialer.Dial(m.wsURL(), header)
	if err != nil {
		return fmt.Errorf("dial %s: %v: %w", m.wsURL(), err, ErrUnavailable)
	}
	m.conn = conn
	go m.readLoop(conn)
	return nil
}

// send writes one frame, serialized against concurrent senders.
func (m *subscriptionManager) send(conn *gorillaws.Conn, msg websocket.ClientMessage) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// subscribe establishes a subscription and returns its stable handle.
func (m *subscriptionManager) subscribe(ctx context.Context, path string, kind notify.Kind, target notify.Target) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("gateway closed")
	}
	if err := m.connectLocked(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	conn := m.conn
	ack := make(chan string, 1)
	m.acks = append(m.acks, ack)
	m.mu.Unlock()

	err := m.send(conn, websocket.ClientMessage{
		Action: websocket.ActionSubscribe,
		Path:   path,
		Group:  kind == notify.KindGroup,
	})
	if err != nil {
		return "", fmt.Errorf("send subscribe: %v: %w", err, ErrUnavailable)
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	var serverID string
	select {
	case id, ok := <-ack:
		if !ok {
			return "", fmt.Errorf("connection lost before acknowledgement: %w", ErrUnavailable)
		}
		serverID = id
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("subscribe acknowledgement timeout: %w", ErrUnavailable)
	}

	sub := &subscription{
		handle:   uuid.NewString(),
		path:     path,
		kind:     kind,
		target:   target,
		serverID: serverID,
	}
	m.mu.Lock()
	m.subs[sub.handle] = sub
	m.mu.Unlock()
	return sub.handle, nil
}

// unsubscribe removes a subscription by handle. Unknown handles are
// ignored; the server-side removal is fire and forget.
func (m *subscriptionManager) unsubscribe(_ context.Context, handle string) error {
	m.mu.Lock()
	sub, ok := m.subs[handle]
	if ok {
		delete(m.subs, handle)
	}
	conn := m.conn
	m.mu.Unlock()
	if !ok || conn == nil {
		return nil
	}

	if err := m.send(conn, websocket.ClientMessage{
		Action: websocket.ActionUnsubscribe,
		ID:     sub.serverID,
	}); err != nil {
		logging.Debug().Err(err).Str("handle", handle).Msg("unsubscribe send failed")
	}
	return nil
}

// close tears down the connection and drops all subscriptions.
func (m *subscriptionManager) close() error {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.subs = make(map[string]*subscription)
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readLoop dispatches incoming frames until the connection fails, then
// hands off to the reconnect loop.
func (m *subscriptionManager) readLoop(conn *gorillaws.Conn) {
	for {
		var msg websocket.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			m.onDisconnect(conn, err)
			return
		}

		switch msg.Type {
		case websocket.TypeSubscribed:
			m.deliverAck(msg.ID)
		case websocket.TypeUnsubscribed:
			// Fire-and-forget removal; nothing waits on this.
		case websocket.TypeData:
			m.deliverData(msg)
		case websocket.TypeCreated:
			m.deliverCreated(msg.Path)
		case websocket.TypeError:
			logging.Warn().Str("message", msg.Message).Msg("server error frame")
		}
	}
}

// deliverAck hands a subscribed frame to the oldest waiter.
func (m *subscriptionManager) deliverAck(id string) {
	m.mu.Lock()
	var ack chan string
	if len(m.acks) > 0 {
		ack = m.acks[0]
		m.acks = m.acks[1:]
	}
	m.mu.Unlock()
	if ack != nil {
		ack <- id
	}
}

// deliverData fans a data frame out to matching dataset subscriptions.
// A target that reports itself unreachable is dropped, mirroring the
// server-side dispatcher.
func (m *subscriptionManager) deliverData(msg websocket.ServerMessage) {
	values, columns := splitWireColumns(msg.Columns)
	batch, err := batchFromWire(msg.Rows, values, columns)
	if err != nil {
		logging.Warn().Err(err).Str("path", msg.Path).Msg("undecodable data frame")
		return
	}

	for _, sub := range m.matching(notify.KindDataset, msg.Path) {
		if err := sub.target.OnData(msg.Path, batch); errors.Is(err, notify.ErrUnreachable) {
			m.drop(sub.handle)
		}
	}
}

// deliverCreated fans a created frame out to matching group subscriptions.
func (m *subscriptionManager) deliverCreated(path string) {
	for _, sub := range m.matching(notify.KindGroup, path) {
		if err := sub.target.OnCreated(path); errors.Is(err, notify.ErrUnreachable) {
			m.drop(sub.handle)
		}
	}
}

// matching snapshots the subscriptions a frame path applies to.
func (m *subscriptionManager) matching(kind notify.Kind, path string) []*subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*subscription
	for _, sub := range m.subs {
		if sub.kind != kind {
			continue
		}
		switch kind {
		case notify.KindDataset:
			if sub.path == path {
				out = append(out, sub)
			}
		case notify.KindGroup:
			if strings.HasPrefix(path, sub.path) {
				out = append(out, sub)
			}
		}
	}
	return out
}

func (m *subscriptionManager) drop(handle string) {
	m.mu.Lock()
	delete(m.subs, handle)
	m.mu.Unlock()
}

// splitWireColumns separates the plain-data "" key from named columns.
func splitWireColumns(cols map[string][]interface{}) ([]interface{}, map[string][]interface{}) {
	if plain, ok := cols[""]; ok && len(cols) == 1 {
		return plain, nil
	}
	return nil, cols
}

// onDisconnect clears the dead connection and starts reconnecting when
// subscriptions remain.
func (m *subscriptionManager) onDisconnect(conn *gorillaws.Conn, err error) {
	_ = conn.Close()

	m.mu.Lock()
	if m.closed || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	// Fail pending subscribes; their connection is gone.
	for _, ack := range m.acks {
		close(ack)
	}
	m.acks = nil
	hasSubs := len(m.subs) > 0
	m.mu.Unlock()

	logging.Warn().Err(err).Msg("subscription connection lost")
	if hasSubs {
		go m.reconnectLoop()
	}
}

// reconnectLoop re-dials with exponential backoff and re-establishes
// every live subscription. Server-side ids are refreshed; handles stay.
func (m *subscriptionManager) reconnectLoop() {
	backoff := reconnectInitial
	for {
		time.Sleep(backoff)

		m.mu.Lock()
		if m.closed || len(m.subs) == 0 {
			m.mu.Unlock()
			return
		}
		err := m.connectLocked()
		conn := m.conn
		m.mu.Unlock()

		if err != nil {
			logging.Debug().Err(err).Dur("backoff", backoff).Msg("reconnect failed")
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		if err := m.resubscribe(conn); err != nil {
			logging.Warn().Err(err).Msg("resubscription failed")
			_ = conn.Close()
			continue
		}
		logging.Info().Msg("subscription connection restored")
		return
	}
}

// resubscribe replays every live subscription on a fresh connection.
func (m *subscriptionManager) resubscribe(conn *gorillaws.Conn) error {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		ack := make(chan string, 1)
		m.mu.Lock()
		m.acks = append(m.acks, ack)
		m.mu.Unlock()

		if err := m.send(conn, websocket.ClientMessage{
			Action: websocket.ActionSubscribe,
			Path:   sub.path,
			Group:  sub.kind == notify.KindGroup,
		}); err != nil {
			return err
		}

		timer := time.NewTimer(ackTimeout)
		select {
		case id, ok := <-ack:
			timer.Stop()
			if !ok {
				return fmt.Errorf("connection lost during resubscribe")
			}
			m.mu.Lock()
			sub.serverID = id
			m.mu.Unlock()
		case <-timer.C:
			return fmt.Errorf("resubscribe acknowledgement timeout")
		}
	}
	return nil
}
