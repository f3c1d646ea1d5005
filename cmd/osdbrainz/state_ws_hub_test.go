package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"osdbrainz/internal/ctrl"
)

// These tests cover hub fanout and slow-client eviction without a real
// websocket server. Clients carry a nil websocket.Conn; the hub guards
// against nil on Close.

// newTestHub returns a hub with small buffers for deterministic tests.
func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), nil, HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		conn:       nil,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
}

func registerAndWait(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 4, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerAndWait(t, hub, c1)
	registerAndWait(t, hub, c2)

	msg := []byte(`{"type":"command","data":{"command":"open_menu","raw":19922944}}`)

	// Push straight into the hub queue; BroadcastBytes may drop under scheduling.
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, string(got), string(msg))
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for hub to stop")
	}

	// Shutdown closes every client's send queue.
	for _, c := range []*Client{c1, c2} {
		if _, ok := <-c.send; ok {
			t.Fatalf("%s send channel still open after shutdown", c.remoteAddr)
		}
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 1, 8)
	go hub.Run(ctx)

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerAndWait(t, hub, slow)
	registerAndWait(t, hub, fast)

	// Pre-fill the slow client so the next broadcast cannot be queued.
	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"status_changed","data":{"muted":true}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", string(got), string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled message, then expect the channel closed.
	select {
	case <-slow.send:
	default:
	}

	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 2, 2)
	go hub.Run(ctx)

	c := newTestClient(hub, "c", 2)
	registerAndWait(t, hub, c)

	hub.unregister <- c
	hub.unregister <- c

	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 0
	}, "client not removed")
}

func TestHub_SendToReachesOnlyTarget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 2, 2)
	go hub.Run(ctx)

	target := newTestClient(hub, "target", 2)
	other := newTestClient(hub, "other", 2)
	registerAndWait(t, hub, target)
	registerAndWait(t, hub, other)

	msg := []byte(`{"type":"state_init"}`)
	hub.SendTo(target, msg)

	select {
	case got := <-target.send:
		if string(got) != string(msg) {
			t.Fatalf("target got %q", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for direct frame")
	}
	select {
	case got := <-other.send:
		t.Fatalf("other client received %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SendToRemovedClientIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 2, 2)
	go hub.Run(ctx)

	gone := newTestClient(hub, "gone", 2)
	registerAndWait(t, hub, gone)

	// Client disconnects before its first frame is ready: send is closed.
	hub.Unregister(gone)
	waitUntil(t, 500*time.Millisecond, func() bool {
		select {
		case _, ok := <-gone.send:
			return !ok
		default:
			return false
		}
	}, "send channel not closed on unregister")

	// Sending on the closed channel would panic the hub goroutine.
	hub.SendTo(gone, []byte(`{"type":"state_init"}`))

	// The hub keeps serving other clients.
	next := newTestClient(hub, "next", 2)
	registerAndWait(t, hub, next)
	msg := []byte(`{"type":"command"}`)
	hub.broadcast <- msg
	select {
	case got := <-next.send:
		if string(got) != string(msg) {
			t.Fatalf("next got %q", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("hub stopped serving after a dropped direct frame")
	}
}

func TestHub_SendToFullClientEvicts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 1, 2)
	go hub.Run(ctx)

	c := newTestClient(hub, "full", 1)
	registerAndWait(t, hub, c)
	c.send <- []byte(`"queued"`)

	hub.SendTo(c, []byte(`{"type":"state_init"}`))
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return !ok
	}, "full client not evicted")
}

func TestHub_CallsAfterStopReturn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := newTestHub(t, 1, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	cancel()
	<-done

	c := newTestClient(hub, "late", 1)
	returned := make(chan bool, 1)
	go func() {
		// Fill the buffered queues first so the sends would otherwise block.
		for i := 0; i < cap(hub.register)+1; i++ {
			if !hub.Register(c) {
				break
			}
		}
		for i := 0; i < cap(hub.unregister)+1; i++ {
			hub.Unregister(c)
		}
		for i := 0; i < cap(hub.direct)+1; i++ {
			hub.SendTo(c, nil)
		}
		returned <- true
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatalf("hub calls blocked after Run returned")
	}
}

func TestRunBroadcaster_MarshalsEnvelopes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 4, 8)
	go hub.Run(ctx)

	c := newTestClient(hub, "c", 4)
	registerAndWait(t, hub, c)

	src := make(chan StateBroadcast, 2)
	go RunBroadcaster(ctx, hub, src, slog.Default())

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	src <- BroadcastCommand{Command: ctrl.OpenMenu, Raw: ctrl.ComboOpenMenu, At: at}
	src <- BroadcastStatusChanged{Status: OSDStatus{MenuOpen: true}, At: at}

	var got []map[string]json.RawMessage
	for len(got) < 2 {
		select {
		case b := <-c.send:
			var m map[string]json.RawMessage
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("unmarshal %s: %v", b, err)
			}
			got = append(got, m)
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for broadcast %d", len(got)+1)
		}
	}

	if string(got[0]["type"]) != `"command"` {
		t.Fatalf("first type=%s", got[0]["type"])
	}
	if string(got[0]["data"]) != `{"command":"open_menu","raw":19922944}` {
		t.Fatalf("command data=%s", got[0]["data"])
	}
	if string(got[0]["ts"]) != `"2024-01-02T03:04:05Z"` {
		t.Fatalf("ts=%s", got[0]["ts"])
	}
	if string(got[1]["type"]) != `"status_changed"` {
		t.Fatalf("second type=%s", got[1]["type"])
	}
	if string(got[1]["data"]) != `{"menu_open":true,"muted":false,"deblur":false,"15bit_mode":false}` {
		t.Fatalf("status data=%s", got[1]["data"])
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
