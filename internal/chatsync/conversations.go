package chatsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/api"
	"github.com/tranvh/chatline/internal/bus"
)

// KindConversationsUpdated is published after every list refresh.
const KindConversationsUpdated = bus.NamespaceConversations + "updated"

// ConversationList caches the room list. Any event that can touch it, a new
// message, a conversations-updated push, a friendship change, triggers a
// wholesale re-fetch of page 1 rather than incremental patching. The list
// is small and those events are rare next to message traffic.
type ConversationList struct {
	svc      *api.ConversationService
	pageSize int
	bus      *bus.Bus
	log      *zap.Logger

	mu         sync.Mutex
	items      []api.ConversationSummary
	page       int
	totalPages int
}

func NewConversationList(svc *api.ConversationService, pageSize int, b *bus.Bus, log *zap.Logger) *ConversationList {
	return &ConversationList{
		svc:      svc,
		pageSize: pageSize,
		bus:      b,
		log:      log.Named("conversations"),
	}
}

// Items returns a copy of the cached list.
func (l *ConversationList) Items() []api.ConversationSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]api.ConversationSummary, len(l.items))
	copy(out, l.items)
	return out
}

// HasMore reports whether pages beyond the cached ones exist.
func (l *ConversationList) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page < l.totalPages
}

// Refresh re-fetches page 1 and replaces the cache. The pagination cursor
// resets with it.
func (l *ConversationList) Refresh(ctx context.Context) error {
	page, err := l.svc.Conversations(ctx, 1, l.pageSize)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.items = page.Conversations
	l.page = 1
	l.totalPages = page.TotalPages
	l.mu.Unlock()
	l.publish()
	return nil
}

// LoadMore appends the next page. No-op when everything is cached.
func (l *ConversationList) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.page >= l.totalPages {
		l.mu.Unlock()
		return nil
	}
	next := l.page + 1
	l.mu.Unlock()

	page, err := l.svc.Conversations(ctx, next, l.pageSize)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.items = append(l.items, page.Conversations...)
	l.page = next
	l.totalPages = page.TotalPages
	l.mu.Unlock()
	l.publish()
	return nil
}

func (l *ConversationList) publish() {
	l.bus.Publish(bus.Event{
		Kind:      KindConversationsUpdated,
		Timestamp: time.Now(),
	})
}
