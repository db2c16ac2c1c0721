package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespacePresence, 10)
	defer unsub()

	b.Publish(Event{Kind: "presence.changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "presence.changed" {
			t.Errorf("got kind %q, want presence.changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceTimeline, 10)
	defer unsub()

	b.Publish(Event{Kind: "connectivity.changed"})
	b.Publish(Event{Kind: "timeline.updated"})

	select {
	case evt := <-ch:
		if evt.Kind != "timeline.updated" {
			t.Errorf("got kind %q, want timeline.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the connectivity event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestSingleEventSubscription(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(SocketKind("message:new"), 10)
	defer unsub()

	b.Publish(Event{Kind: SocketKind("user:online")})
	b.Publish(Event{Kind: SocketKind("message:new")})

	select {
	case evt := <-ch:
		if evt.Kind != "socket.message:new" {
			t.Errorf("got kind %q, want socket.message:new", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceSession, 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
