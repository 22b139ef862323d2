package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("cache.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationsChanged, Timestamp: time.Now(), Payload: []string{"c1"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindConversationsChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConversationsChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationsChanged})
	b.Publish(Event{Kind: KindSendFailed})

	select {
	case evt := <-ch:
		if evt.Kind != KindSendFailed {
			t.Errorf("got kind %q, want %q", evt.Kind, KindSendFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The cache event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: KindStatusChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("cache.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindMessagesChanged, Payload: MessagesChanged{ConversationID: "one"}})
	// Buffer is full; this one is dropped rather than blocking.
	b.Publish(Event{Kind: KindMessagesChanged, Payload: MessagesChanged{ConversationID: "two"}})

	evt := <-ch
	mc, ok := evt.Payload.(MessagesChanged)
	if !ok || mc.ConversationID != "one" {
		t.Errorf("got %v, want first event", evt.Payload)
	}
}
