package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: MessageUpserted, Timestamp: time.Now(), Payload: MessageRef{ChatID: "room1", MessageID: "temp_1"}})

	select {
	case evt := <-ch:
		if evt.Kind != MessageUpserted {
			t.Errorf("got kind %q, want %s", evt.Kind, MessageUpserted)
		}
		ref, ok := evt.Payload.(MessageRef)
		if !ok || ref.MessageID != "temp_1" {
			t.Errorf("payload = %#v, want MessageRef{temp_1}", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("typing.", 10)
	defer unsub()

	b.Emit(MessageConfirmed, nil)
	b.Emit(TypingChanged, TypingChange{ChatID: "room1", Typing: true})

	select {
	case evt := <-ch:
		if evt.Kind != TypingChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, TypingChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()
	unsub() // idempotent

	b.Emit(MessageFailed, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("presence.", 1)
	defer unsub()

	b.Emit(PresenceChanged, PresenceChange{UserID: "one"})
	b.Emit(PresenceChanged, PresenceChange{UserID: "two"})

	evt := <-ch
	if p := evt.Payload.(PresenceChange); p.UserID != "one" {
		t.Errorf("got %q, want one", p.UserID)
	}
}

func TestEmitStampsTimeAndNilBus(t *testing.T) {
	var nilBus *Bus
	nilBus.Emit(MessageFailed, nil) // must not panic

	b := New()
	ch, unsub := b.Subscribe("", 1)
	defer unsub()
	b.Publish(Event{Kind: ConnectionChanged})
	if evt := <-ch; evt.Timestamp.IsZero() {
		t.Error("Publish did not stamp a zero timestamp")
	}
}
