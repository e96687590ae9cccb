// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cryodaq/cryodaq/internal/dataserver"
	"github.com/cryodaq/cryodaq/internal/notify"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// fakeAPI records subscriptions so tests can drive deliveries by hand.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	targets map[string]notify.Target
	removed []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{targets: make(map[string]notify.Target)}
}

func (f *fakeAPI) Append(context.Context, string, record.Payload, map[string]interface{}) (store.AppendResult, error) {
	return store.AppendResult{}, nil
}

func (f *fakeAPI) Node(context.Context, string) (dataserver.NodeInfo, error) {
	return dataserver.NodeInfo{}, store.ErrNotFound
}

func (f *fakeAPI) Values(context.Context, string, *int, *int, string) (*record.Batch, error) {
	return nil, store.ErrNotFound
}

func (f *fakeAPI) Keys(context.Context, string) ([]string, error) {
	return nil, store.ErrNotFound
}

func (f *fakeAPI) Subscribe(_ context.Context, path string, _ notify.Kind, target notify.Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("sub-%d", f.nextID)
	f.targets[id] = target
	return id, nil
}

func (f *fakeAPI) Unsubscribe(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.targets, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeAPI) target(id string) notify.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targets[id]
}

func (f *fakeAPI) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.removed))
	copy(out, f.removed)
	return out
}

// dialTestClient spins up a server that wraps every connection in a
// Client, and returns a connected peer.
func dialTestClient(t *testing.T, api dataserver.API) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		NewClient(conn, api).Start()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

func TestClientSubscribeRoundTrip(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	req := ClientMessage{Action: ActionSubscribe, Path: "/m/dev1"}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	msg := readFrame(t, conn)
	if msg.Type != TypeSubscribed {
		t.Fatalf("type = %q, want %q", msg.Type, TypeSubscribed)
	}
	if msg.Path != "/m/dev1" {
		t.Errorf("path = %q, want /m/dev1", msg.Path)
	}
	if msg.ID == "" {
		t.Error("expected a subscription id")
	}
	if api.target(msg.ID) == nil {
		t.Error("subscription target not registered with the API")
	}
}

func TestClientDeliversDataFrame(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Path: "/m/dev1"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	sub := readFrame(t, conn)

	batch := &record.Batch{
		Schema: &record.Schema{Fields: []record.Field{{Name: "x", Kind: record.KindFloat64}}},
		Rows:   2,
		Cols:   []record.Column{record.FloatColumn(1.5, 2.5)},
	}
	if err := api.target(sub.ID).OnData("/m/dev1", batch); err != nil {
		t.Fatalf("OnData failed: %v", err)
	}

	msg := readFrame(t, conn)
	if msg.Type != TypeData {
		t.Fatalf("type = %q, want %q", msg.Type, TypeData)
	}
	if msg.Path != "/m/dev1" || msg.Rows != 2 {
		t.Errorf("got path=%q rows=%d, want /m/dev1 rows=2", msg.Path, msg.Rows)
	}
	if len(msg.Columns["x"]) != 2 {
		t.Errorf("columns[x] has %d values, want 2", len(msg.Columns["x"]))
	}
}

func TestClientDeliversCreatedFrame(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Path: "/m", Group: true}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	sub := readFrame(t, conn)

	if err := api.target(sub.ID).OnCreated("/m/dev2"); err != nil {
		t.Fatalf("OnCreated failed: %v", err)
	}
	msg := readFrame(t, conn)
	if msg.Type != TypeCreated || msg.Path != "/m/dev2" {
		t.Fatalf("got type=%q path=%q, want created /m/dev2", msg.Type, msg.Path)
	}
}

func TestClientUnsubscribe(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Path: "/m/dev1"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	sub := readFrame(t, conn)

	if err := conn.WriteJSON(ClientMessage{Action: ActionUnsubscribe, ID: sub.ID}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	msg := readFrame(t, conn)
	if msg.Type != TypeUnsubscribed || msg.ID != sub.ID {
		t.Fatalf("got type=%q id=%q, want unsubscribed %q", msg.Type, msg.ID, sub.ID)
	}
	if api.target(sub.ID) != nil {
		t.Error("subscription still registered after unsubscribe")
	}
}

func TestClientUnknownActionReportsError(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	if err := conn.WriteJSON(ClientMessage{Action: "bogus"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	msg := readFrame(t, conn)
	if msg.Type != TypeError {
		t.Fatalf("type = %q, want %q", msg.Type, TypeError)
	}
}

func TestClientDisconnectRemovesSubscriptions(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Path: "/m/dev1"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	sub := readFrame(t, conn)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(api.removedIDs()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	removed := api.removedIDs()
	if len(removed) != 1 || removed[0] != sub.ID {
		t.Fatalf("removed = %v, want [%s]", removed, sub.ID)
	}
}

func TestPushFullQueueReportsUnreachable(t *testing.T) {
	// An unstarted client has no write pump, so the queue fills up.
	c := NewClient(nil, newFakeAPI())
	for i := 0; i < sendBuffer; i++ {
		if err := c.push(ServerMessage{Type: TypeCreated, Path: "/p"}); err != nil {
			t.Fatalf("push %d failed early: %v", i, err)
		}
	}
	err := c.push(ServerMessage{Type: TypeCreated, Path: "/p"})
	if !errors.Is(err, notify.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestPushClosedClientReportsUnreachable(t *testing.T) {
	c := NewClient(nil, newFakeAPI())
	close(c.done)

	err := c.push(ServerMessage{Type: TypeCreated, Path: "/p"})
	if !errors.Is(err, notify.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestClientDeliveryRacingDisconnect(t *testing.T) {
	api := newFakeAPI()
	conn := dialTestClient(t, api)

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Path: "/m/dev1"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	sub := readFrame(t, conn)
	target := api.target(sub.ID)

	batch := &record.Batch{
		Schema: &record.Schema{Fields: []record.Field{{Name: "x", Kind: record.KindFloat64}}},
		Rows:   1,
		Cols:   []record.Column{record.FloatColumn(1.5)},
	}

	// Pool workers keep delivering while the peer disconnects and the
	// client tears down. Deliveries after teardown must report
	// ErrUnreachable, never panic.
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 500; j++ {
				if err := target.OnData("/m/dev1", batch); err != nil && !errors.Is(err, notify.ErrUnreachable) {
					t.Errorf("OnData: %v", err)
					return
				}
			}
		}()
	}
	close(start)
	_ = conn.Close()
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if errors.Is(target.OnCreated("/m/dev1"), notify.ErrUnreachable) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("torn-down client still accepts deliveries")
}
