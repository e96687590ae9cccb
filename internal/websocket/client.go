// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/metrics"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendBuffer bounds the per-client outbound queue. A client that
	// cannot drain it is classified unreachable and dropped, so a stalled
	// viewer never backs up the delivery pool.
	sendBuffer = 256
)

// clientIDCounter hands out unique connection ids for log correlation.
var clientIDCounter atomic.Uint64

// Client is one subscriber connection. It pumps frames between the
// websocket and the data service: inbound subscribe/unsubscribe requests,
// outbound data and created notifications.
type Client struct {
	id   uint64
	conn *websocket.Conn
	api  dataserver.API

	// send is never closed: dispatcher pool workers push into it
	// concurrently with teardown, and a close would race those sends.
	// done signals shutdown instead.
	send chan ServerMessage
	done chan struct{}

	mu     sync.Mutex
	subs   map[string]struct{}
	closed bool
}

// NewClient wraps an upgraded connection. Call Start to begin pumping.
func NewClient(conn *websocket.Conn, api dataserver.API) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		conn: conn,
		api:  api,
		send: make(chan ServerMessage, sendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() uint64 {
	return c.id
}

// Start launches the read and write pumps. It returns immediately; the
// pumps run until the connection drops, at which point every subscription
// the client registered is removed.
func (c *Client) Start() {
	metrics.TrackWSConnection(true)
	go c.writePump()
	go c.readPump()
}

// Target returns the delivery target backing this client's subscriptions.
func (c *Client) Target() notify.Target {
	return (*clientTarget)(c)
}

// clientTarget adapts the client's send queue to notify.Target. Delivery
// never blocks: a full queue or a closed client reports ErrUnreachable so
// the dispatcher deregisters the subscription.
type clientTarget Client

func (t *clientTarget) OnData(path string, batch *record.Batch) error {
	msg := ServerMessage{
		Type:    TypeData,
		Path:    path,
		Rows:    batch.Rows,
		Columns: batch.ColumnValues(),
	}
	return (*Client)(t).push(msg)
}

func (t *clientTarget) OnCreated(path string) error {
	return (*Client)(t).push(ServerMessage{Type: TypeCreated, Path: path})
}

// push enqueues one outbound frame without blocking. A frame that loses
// the race with teardown sits in the buffer unread; the channel itself
// stays open, so a late push is always safe.
func (c *Client) push(msg ServerMessage) error {
	select {
	case <-c.done:
		return fmt.Errorf("client %d closed: %w", c.id, notify.ErrUnreachable)
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("client %d send queue full: %w", c.id, notify.ErrUnreachable)
	}
}

// readPump consumes subscribe and unsubscribe frames until the connection
// drops, then tears the client down.
func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Uint64("client", c.id).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("client", c.id).Msg("unexpected websocket close")
			}
			return
		}
		c.handle(msg)
	}
}

// handle executes one client request and queues the acknowledgement.
func (c *Client) handle(msg ClientMessage) {
	switch msg.Action {
	case ActionSubscribe:
		metrics.RecordWSMessageReceived(ActionSubscribe)
		kind := notify.KindDataset
		if msg.Group {
			kind = notify.KindGroup
		}
		id, err := c.api.Subscribe(context.Background(), msg.Path, kind, c.Target())
		if err != nil {
			c.reply(ServerMessage{Type: TypeError, Path: msg.Path, Message: err.Error()})
			return
		}
		c.mu.Lock()
		c.subs[id] = struct{}{}
		c.mu.Unlock()
		c.reply(ServerMessage{Type: TypeSubscribed, Path: msg.Path, ID: id})

	case ActionUnsubscribe:
		metrics.RecordWSMessageReceived(ActionUnsubscribe)
		_ = c.api.Unsubscribe(context.Background(), msg.ID)
		c.mu.Lock()
		delete(c.subs, msg.ID)
		c.mu.Unlock()
		c.reply(ServerMessage{Type: TypeUnsubscribed, ID: msg.ID})

	default:
		metrics.RecordWSMessageReceived("unknown")
		c.reply(ServerMessage{Type: TypeError, Message: fmt.Sprintf("unknown action %q", msg.Action)})
	}
}

// reply queues a response frame, dropping it when the queue is full. The
// client is about to be torn down in that case anyway.
func (c *Client) reply(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

// teardown marks the client closed, removes its live subscriptions and
// releases the connection.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.subs = nil
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.api.Unsubscribe(context.Background(), id)
	}
	close(c.done)
	_ = c.conn.Close()
	metrics.TrackWSConnection(false)
	logging.Debug().Uint64("client", c.id).Int("subscriptions", len(ids)).Msg("websocket client closed")
}

// writePump drains the send queue to the connection and keeps the link
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Uint64("client", c.id).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug().Err(err).Uint64("client", c.id).Msg("websocket write failed")
				return
			}
			metrics.RecordWSMessageSent(msg.Type)

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
