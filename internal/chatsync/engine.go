package chatsync

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/tranvh/chatline/internal/api"
	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/config"
)

// RoomMembership is the transport surface the engine needs: subscribing
// and unsubscribing to a room's realtime events.
type RoomMembership interface {
	JoinConversation(conversationID string) error
	LeaveConversation(conversationID string) error
}

// Engine owns the open timelines and the conversation list and feeds both
// from the socket event stream. Opening a conversation joins its realtime
// room; closing it leaves the room, marks the conversation read and drops
// the window, nothing is cached across opens.
type Engine struct {
	svc      *api.ConversationService
	list     *ConversationList
	rooms    RoomMembership
	pageSize int
	bus      *bus.Bus
	log      *zap.Logger

	mu        sync.Mutex
	timelines map[string]*Timeline
}

func NewEngine(cfg *config.Config, svc *api.ConversationService, list *ConversationList, rooms RoomMembership, b *bus.Bus, log *zap.Logger) *Engine {
	return &Engine{
		svc:       svc,
		list:      list,
		rooms:     rooms,
		pageSize:  cfg.PageSize,
		bus:       b,
		log:       log.Named("chatsync"),
		timelines: make(map[string]*Timeline),
	}
}

// List returns the conversation list.
func (e *Engine) List() *ConversationList { return e.list }

// Open returns the timeline for a conversation, creating it and joining
// the realtime room on first use.
func (e *Engine) Open(conversationID string) *Timeline {
	e.mu.Lock()
	tl, ok := e.timelines[conversationID]
	if !ok {
		tl = newTimeline(conversationID, e.svc, e.pageSize, e.bus, e.log)
		e.timelines[conversationID] = tl
	}
	e.mu.Unlock()
	if !ok && e.rooms != nil {
		if err := e.rooms.JoinConversation(conversationID); err != nil {
			e.log.Warn("room join failed", zap.String("conversation", conversationID), zap.Error(err))
		}
	}
	return tl
}

// Close tears a timeline down: leaves the room, marks the conversation
// read and evicts the window.
func (e *Engine) Close(ctx context.Context, conversationID string) {
	e.mu.Lock()
	tl, ok := e.timelines[conversationID]
	delete(e.timelines, conversationID)
	e.mu.Unlock()
	if !ok {
		return
	}
	if e.rooms != nil {
		if err := e.rooms.LeaveConversation(conversationID); err != nil {
			e.log.Warn("room leave failed", zap.String("conversation", conversationID), zap.Error(err))
		}
	}
	if err := tl.MarkRead(ctx); err != nil {
		e.log.Warn("mark read failed", zap.String("conversation", conversationID), zap.Error(err))
	}
}

func (e *Engine) timeline(conversationID string) *Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timelines[conversationID]
}

// Run consumes socket events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	events, unsub := e.bus.Subscribe(bus.NamespaceSocket, 128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			e.handle(ctx, evt)
		}
	}
}

func (e *Engine) handle(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.SocketKind("message:new"):
		raw, _ := evt.Payload.(json.RawMessage)
		msg, ok := decodeMessagePush(raw)
		if !ok {
			e.log.Warn("dropping malformed message push", zap.ByteString("payload", raw))
			return
		}
		if tl := e.timeline(msg.ConversationID); tl != nil {
			tl.ApplyPush(msg)
		}
		e.refreshList(ctx)
	case bus.SocketKind("conversations:updated"),
		bus.SocketKind("friend:added"),
		bus.SocketKind("friend:request:updated"):
		e.refreshList(ctx)
	}
}

// decodeMessagePush accepts both push shapes the server uses: the message
// nested under "message" or the message as the payload itself. A payload
// without a message id or conversation id is malformed.
func decodeMessagePush(raw json.RawMessage) (api.Message, bool) {
	var wrapped struct {
		ConversationID string       `json:"conversationId"`
		Message        *api.Message `json:"message"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return api.Message{}, false
	}
	var msg api.Message
	if wrapped.Message != nil {
		msg = *wrapped.Message
	} else if err := json.Unmarshal(raw, &msg); err != nil {
		return api.Message{}, false
	}
	if msg.ConversationID == "" {
		msg.ConversationID = wrapped.ConversationID
	}
	if msg.ID == "" || msg.ConversationID == "" {
		return api.Message{}, false
	}
	return msg, true
}

func (e *Engine) refreshList(ctx context.Context) {
	if err := e.list.Refresh(ctx); err != nil {
		e.log.Warn("conversation list refresh failed", zap.Error(err))
	}
}
