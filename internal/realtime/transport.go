package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/config"
	"github.com/tranvh/chatline/internal/status"
)

// reconnectDelay is the fixed backoff between attempts after the immediate
// first retry. No exponential growth, no attempt cap, the loop runs until
// explicit teardown.
const reconnectDelay = 2 * time.Second

var errNotConnected = errors.New("not connected")

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Locally synthesized lifecycle events, published alongside the server's
// own named events.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Transport maintains the one realtime connection of an authenticated
// session. Inbound frames are published on the bus as "socket.<event>" with
// the raw payload; the sync components own all merging. The Transport
// itself survives token changes and reconnects, callers hold exactly one
// for the lifetime of the session.
type Transport struct {
	url     string
	bus     *bus.Bus
	machine *status.Machine
	log     *zap.Logger

	mu     sync.Mutex
	token  string
	conn   *websocket.Conn
	joined map[string]struct{}

	runCtx  context.Context
	runStop context.CancelFunc
	done    chan struct{}
}

// SocketURL resolves the realtime endpoint. An explicit socket_url wins;
// otherwise it is derived from the REST base by dropping the version path
// and switching the scheme.
func SocketURL(cfg *config.Config) string {
	if cfg.SocketURL != "" {
		return cfg.SocketURL
	}
	u := strings.TrimSuffix(cfg.BaseURL, "/api/v1")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws"
}

func NewTransport(cfg *config.Config, b *bus.Bus, machine *status.Machine, log *zap.Logger) *Transport {
	return &Transport{
		url:     SocketURL(cfg),
		bus:     b,
		machine: machine,
		log:     log.Named("realtime"),
		joined:  make(map[string]struct{}),
	}
}

// SetToken installs the bearer token used for the next dial. When a
// connection is live it is dropped so the reconnect loop re-authenticates
// with the new value.
func (t *Transport) SetToken(token string) {
	t.mu.Lock()
	changed := t.token != token
	t.token = token
	conn := t.conn
	t.mu.Unlock()
	if changed && conn != nil {
		conn.Close()
	}
}

// Connect starts the connection loop. It returns immediately; connection
// state is observable through "socket.connect"/"socket.disconnect" events
// and the session status machine.
func (t *Transport) Connect(ctx context.Context) {
	t.mu.Lock()
	if t.runStop != nil {
		t.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.runCtx = runCtx
	t.runStop = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.run(runCtx)
}

// Close tears the connection down for good and waits for the loop to exit.
// Used on logout and shutdown only, transient errors never reach here.
func (t *Transport) Close() {
	t.mu.Lock()
	stop := t.runStop
	conn := t.conn
	done := t.done
	t.runStop = nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

// JoinConversation subscribes this client to a room's events. The
// membership is remembered and re-emitted after every reconnect.
func (t *Transport) JoinConversation(conversationID string) error {
	t.mu.Lock()
	t.joined[conversationID] = struct{}{}
	t.mu.Unlock()
	return t.Emit("conversation:join", map[string]string{"conversationId": conversationID})
}

// LeaveConversation unsubscribes from a room.
func (t *Transport) LeaveConversation(conversationID string) error {
	t.mu.Lock()
	delete(t.joined, conversationID)
	t.mu.Unlock()
	return t.Emit("conversation:leave", map[string]string{"conversationId": conversationID})
}

// Emit sends a named event to the server. Returns an error when no
// connection is live; callers treat that as a transient condition, joins
// are replayed on reconnect anyway.
func (t *Transport) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return errNotConnected
	}
	return t.conn.WriteJSON(Envelope{Event: event, Payload: raw})
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.done)
	failures := 0
	for ctx.Err() == nil {
		conn, err := t.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			t.log.Warn("dial failed", zap.Error(err), zap.Int("attempt", failures))
			t.publish(EventConnectError, nil)
			if failures > 1 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
				}
			}
			continue
		}
		failures = 0

		t.mu.Lock()
		t.conn = conn
		rooms := make([]string, 0, len(t.joined))
		for id := range t.joined {
			rooms = append(rooms, id)
		}
		t.mu.Unlock()

		t.log.Info("connected", zap.String("url", t.url))
		t.publish(EventConnect, nil)
		t.setStatus(status.Ready)
		for _, id := range rooms {
			if err := t.Emit("conversation:join", map[string]string{"conversationId": id}); err != nil {
				t.log.Warn("rejoin failed", zap.String("conversation", id), zap.Error(err))
			}
		}

		t.readLoop(conn)

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		t.publish(EventDisconnect, nil)
		if ctx.Err() == nil {
			t.setStatus(status.Reconnecting)
		}
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	token := t.token
	t.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop drains frames until the connection dies. Malformed frames are
// dropped with a warning, one bad push must never take the session down.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.log.Info("connection closed", zap.Error(err))
			conn.Close()
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			t.log.Warn("dropping malformed frame", zap.ByteString("frame", raw))
			continue
		}
		t.publish(env.Event, env.Payload)
	}
}

func (t *Transport) publish(event string, payload json.RawMessage) {
	t.bus.Publish(bus.Event{
		Kind:      bus.SocketKind(event),
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (t *Transport) setStatus(to status.State) {
	if t.machine == nil {
		return
	}
	if err := t.machine.Transition(to); err != nil {
		t.log.Debug("status transition skipped", zap.Error(err))
	}
}
