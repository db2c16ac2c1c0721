package presence

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/bus"
)

// KindChanged is published whenever the online set changes.
const KindChanged = bus.NamespacePresence + "changed"

// Change is the payload of KindChanged events.
type Change struct {
	// Online is the full set after the change, sorted for determinism.
	Online []string
}

// Tracker maintains the set of user ids currently connected to the
// realtime server. The snapshot event replaces the set wholesale and is
// authoritative, the server sends one on every (re)connect, so stale state
// never survives a reconnect. Join and leave adjust incrementally and are
// idempotent. No history or ordering is kept, last-seen timestamps belong
// to the profile fetch path.
type Tracker struct {
	bus *bus.Bus
	log *zap.Logger

	mu     sync.RWMutex
	online map[string]struct{}
}

func NewTracker(b *bus.Bus, log *zap.Logger) *Tracker {
	return &Tracker{
		bus:    b,
		log:    log.Named("presence"),
		online: make(map[string]struct{}),
	}
}

// IsOnline reports whether the user is currently connected.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// Snapshot replaces the whole set.
func (t *Tracker) Snapshot(ids []string) {
	t.mu.Lock()
	t.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		t.online[id] = struct{}{}
	}
	t.mu.Unlock()
	t.publish()
}

// Join marks a user online. Adding a present id is a no-op.
func (t *Tracker) Join(userID string) {
	t.mu.Lock()
	if _, ok := t.online[userID]; ok {
		t.mu.Unlock()
		return
	}
	t.online[userID] = struct{}{}
	t.mu.Unlock()
	t.publish()
}

// Leave marks a user offline. Removing an absent id is a no-op.
func (t *Tracker) Leave(userID string) {
	t.mu.Lock()
	if _, ok := t.online[userID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.online, userID)
	t.mu.Unlock()
	t.publish()
}

// Online returns the current set, sorted.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (t *Tracker) publish() {
	t.bus.Publish(bus.Event{
		Kind:      KindChanged,
		Timestamp: time.Now(),
		Payload:   Change{Online: t.Online()},
	})
}

// Run consumes presence pushes from the realtime transport until ctx is
// cancelled. Malformed payloads are dropped with a warning.
func (t *Tracker) Run(ctx context.Context) {
	events, unsub := t.bus.Subscribe(bus.NamespaceSocket, 64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			t.handle(evt)
		}
	}
}

func (t *Tracker) handle(evt bus.Event) {
	raw, _ := evt.Payload.(json.RawMessage)
	switch evt.Kind {
	case bus.SocketKind("users:online:list"):
		var p struct {
			UserIDs []string `json:"userIds"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			t.log.Warn("dropping malformed snapshot", zap.Error(err))
			return
		}
		t.Snapshot(p.UserIDs)
	case bus.SocketKind("user:online"):
		if id, ok := userID(raw); ok {
			t.Join(id)
		} else {
			t.log.Warn("dropping malformed join", zap.ByteString("payload", raw))
		}
	case bus.SocketKind("user:offline"):
		if id, ok := userID(raw); ok {
			t.Leave(id)
		} else {
			t.log.Warn("dropping malformed leave", zap.ByteString("payload", raw))
		}
	}
}

func userID(raw json.RawMessage) (string, bool) {
	var p struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.UserID == "" {
		return "", false
	}
	return p.UserID, true
}
