package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/config"
)

var upgrader = websocket.Upgrader{}

func wsConfig(srvURL string) *config.Config {
	cfg := config.Default()
	cfg.SocketURL = "ws" + strings.TrimPrefix(srvURL, "http")
	return cfg
}

func waitEvent(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", kind)
		}
	}
}

func TestInboundFramesPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.WriteJSON(Envelope{Event: "message:new", Payload: json.RawMessage(`{"id":"m1"}`)})
		// Hold the connection open so the client does not cycle.
		c.ReadMessage()
	}))
	defer srv.Close()

	b := bus.New()
	events, unsub := b.Subscribe(bus.NamespaceSocket, 16)
	defer unsub()

	tr := NewTransport(wsConfig(srv.URL), b, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Connect(ctx)
	defer tr.Close()

	waitEvent(t, events, bus.SocketKind(EventConnect))
	evt := waitEvent(t, events, bus.SocketKind("message:new"))
	raw, ok := evt.Payload.(json.RawMessage)
	if !ok {
		t.Fatalf("payload should be raw JSON, got %T", evt.Payload)
	}
	var msg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID != "m1" {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		c.WriteMessage(websocket.TextMessage, []byte(`{"payload":{"x":1}}`))
		c.WriteJSON(Envelope{Event: "user:online", Payload: json.RawMessage(`{"userId":"u1"}`)})
		c.ReadMessage()
	}))
	defer srv.Close()

	b := bus.New()
	events, unsub := b.Subscribe(bus.NamespaceSocket, 16)
	defer unsub()

	tr := NewTransport(wsConfig(srv.URL), b, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Connect(ctx)
	defer tr.Close()

	evt := waitEvent(t, events, bus.SocketKind("user:online"))
	if evt.Kind != bus.SocketKind("user:online") {
		t.Fatalf("unexpected event %q", evt.Kind)
	}
}

func TestBearerTokenSentAndRotated(t *testing.T) {
	tokens := make(chan string, 4)
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.Header.Get("Authorization")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		c.ReadMessage()
	}))
	defer srv.Close()

	b := bus.New()
	events, unsub := b.Subscribe(bus.NamespaceSocket, 16)
	defer unsub()

	tr := NewTransport(wsConfig(srv.URL), b, nil, zap.NewNop())
	tr.SetToken("tok-1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Connect(ctx)
	defer tr.Close()

	waitEvent(t, events, bus.SocketKind(EventConnect))
	if got := <-tokens; got != "Bearer tok-1" {
		t.Fatalf("first dial auth = %q", got)
	}

	// A token change drops the live connection and redials with the new
	// value, the Transport itself is not recreated.
	tr.SetToken("tok-2")
	waitEvent(t, events, bus.SocketKind(EventDisconnect))
	waitEvent(t, events, bus.SocketKind(EventConnect))
	if got := <-tokens; got != "Bearer tok-2" {
		t.Fatalf("redial auth = %q", got)
	}
}

func TestJoinsReplayedOnReconnect(t *testing.T) {
	joins := make(chan string, 8)
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		go func() {
			for {
				var env Envelope
				if err := c.ReadJSON(&env); err != nil {
					return
				}
				if env.Event == "conversation:join" {
					joins <- env.Event
					if n == 1 {
						// Drop the first connection after the join to force
						// a reconnect.
						c.Close()
					}
				}
			}
		}()
		// Keep handler alive until the server shuts down.
		<-r.Context().Done()
	}))
	defer srv.Close()

	b := bus.New()
	events, unsub := b.Subscribe(bus.NamespaceSocket, 16)
	defer unsub()

	tr := NewTransport(wsConfig(srv.URL), b, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Connect(ctx)
	defer tr.Close()

	waitEvent(t, events, bus.SocketKind(EventConnect))
	if err := tr.JoinConversation("c1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-joins:
		case <-time.After(3 * time.Second):
			t.Fatalf("join %d never arrived", i+1)
		}
	}
	if conns.Load() < 2 {
		t.Fatalf("expected a reconnect, got %d connections", conns.Load())
	}
}

func TestCloseStopsReconnecting(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := bus.New()
	tr := NewTransport(wsConfig(srv.URL), b, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Connect(ctx)

	time.Sleep(50 * time.Millisecond)
	tr.Close()
	settled := dials.Load()
	time.Sleep(100 * time.Millisecond)
	if dials.Load() != settled {
		t.Fatal("dial loop kept running after Close")
	}
}
