package chatsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/api"
	"github.com/tranvh/chatline/internal/bus"
)

// KindTimelineUpdated is published after every timeline mutation. The
// payload names the conversation, subscribers pull the messages from the
// Timeline.
const KindTimelineUpdated = bus.NamespaceTimeline + "updated"

// TimelineChange is the payload of KindTimelineUpdated events.
type TimelineChange struct {
	ConversationID string
}

// PageCursor is the pagination state of one timeline. Page advances
// monotonically on load-older and resets to 1 on load-latest.
type PageCursor struct {
	Page    int
	HasMore bool
}

// Timeline is the loaded message window of one open conversation. REST
// pages and socket pushes race freely; every mutation runs through the
// id-keyed merge, so ordering and dedup never depend on which source won.
type Timeline struct {
	conversationID string
	svc            *api.ConversationService
	pageSize       int
	bus            *bus.Bus
	log            *zap.Logger

	mu       sync.Mutex
	messages []api.Message
	cursor   PageCursor
}

func newTimeline(conversationID string, svc *api.ConversationService, pageSize int, b *bus.Bus, log *zap.Logger) *Timeline {
	return &Timeline{
		conversationID: conversationID,
		svc:            svc,
		pageSize:       pageSize,
		bus:            b,
		log:            log,
	}
}

// ConversationID returns the conversation this timeline belongs to.
func (t *Timeline) ConversationID() string { return t.conversationID }

// Messages returns a copy of the current window, newest first.
func (t *Timeline) Messages() []api.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]api.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Cursor returns the current pagination state.
func (t *Timeline) Cursor() PageCursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// LoadLatest fetches page 1 and replaces the window. Resets the cursor.
func (t *Timeline) LoadLatest(ctx context.Context) error {
	page, err := t.svc.Messages(ctx, t.conversationID, 1, t.pageSize)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.messages = Merge(t.messages, page.Messages, Replace)
	t.cursor = PageCursor{Page: 1, HasMore: page.HasMore()}
	t.mu.Unlock()
	t.publish()
	return nil
}

// LoadOlder fetches the next older page and folds it in. A call with no
// more pages is a no-op, not an error.
func (t *Timeline) LoadOlder(ctx context.Context) error {
	t.mu.Lock()
	if !t.cursor.HasMore {
		t.mu.Unlock()
		return nil
	}
	next := t.cursor.Page + 1
	t.mu.Unlock()

	page, err := t.svc.Messages(ctx, t.conversationID, next, t.pageSize)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.messages = Merge(t.messages, page.Messages, PrependOlder)
	t.cursor = PageCursor{Page: next, HasMore: page.HasMore()}
	t.mu.Unlock()
	t.publish()
	return nil
}

// ApplyPush folds one message delivered over the socket into the window.
func (t *Timeline) ApplyPush(msg api.Message) {
	t.mu.Lock()
	t.messages = Merge(t.messages, []api.Message{msg}, AppendLive)
	t.mu.Unlock()
	t.publish()
}

// MarkRead zeroes the unread counter for this conversation on the server.
func (t *Timeline) MarkRead(ctx context.Context) error {
	return t.svc.MarkRead(ctx, t.conversationID)
}

func (t *Timeline) publish() {
	t.bus.Publish(bus.Event{
		Kind:      KindTimelineUpdated,
		Timestamp: time.Now(),
		Payload:   TimelineChange{ConversationID: t.conversationID},
	})
}
