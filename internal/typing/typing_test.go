package typing

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/springsconnect/springs/internal/bus"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestTrackerClearsAfterLinger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock, 2*time.Second, nil)

	tr.Signal("room1", "bob")
	if !tr.IsTyping("room1", "bob") {
		t.Fatal("IsTyping = false right after signal")
	}

	clock.Advance(2001 * time.Millisecond)
	waitFor(t, "typing flag to clear", func() bool { return !tr.IsTyping("room1", "bob") })
}

func TestTrackerRefreshExtendsLinger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock, 2*time.Second, nil)

	tr.Signal("room1", "bob")
	clock.Advance(1900 * time.Millisecond)
	tr.Signal("room1", "bob")
	clock.Advance(200 * time.Millisecond) // past the original 2000ms boundary

	time.Sleep(20 * time.Millisecond)
	if !tr.IsTyping("room1", "bob") {
		t.Fatal("typing flag cleared at the original boundary despite refresh")
	}

	clock.Advance(1801 * time.Millisecond)
	waitFor(t, "typing flag to clear after refreshed linger", func() bool { return !tr.IsTyping("room1", "bob") })
}

func TestTrackerPublishesChanges(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := bus.New()
	ch, unsub := b.Subscribe("typing.", 10)
	defer unsub()

	tr := NewTracker(clock, 2*time.Second, b)
	tr.Signal("room1", "bob")
	tr.Signal("room1", "bob") // refresh, no second "started" event

	evt := <-ch
	if c := evt.Payload.(bus.TypingChange); !c.Typing || c.FromUserID != "bob" {
		t.Errorf("first change = %+v, want bob typing", c)
	}

	clock.Advance(3 * time.Second)
	select {
	case evt := <-ch:
		if c := evt.Payload.(bus.TypingChange); c.Typing {
			t.Errorf("second change = %+v, want typing=false", c)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stop event")
	}
}

func TestTrackerKeysAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock, 2*time.Second, nil)

	tr.Signal("room1", "bob")
	if tr.IsTyping("room2", "bob") || tr.IsTyping("room1", "carol") {
		t.Error("typing flag leaked to another chat or user")
	}
	if got := tr.Typists("room1"); len(got) != 1 || got[0] != "bob" {
		t.Errorf("Typists(room1) = %v, want [bob]", got)
	}
}

func TestEmitterThrottlesKeystrokes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var n atomic.Int32
	e := NewEmitter(clock, time.Second, func(chatID string) {
		if chatID == "room1" {
			n.Add(1)
		}
	})
	defer e.Stop()

	for i := 0; i < 20; i++ {
		e.Keystroke("room1")
	}
	if n.Load() != 1 {
		t.Fatalf("signals after burst = %d, want 1", n.Load())
	}

	// Still typing: the queued keystroke refreshes the remote side once per window.
	clock.Advance(time.Second)
	waitFor(t, "refresh signal", func() bool { return n.Load() == 2 })

	// Stopped typing: nothing else goes out.
	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n.Load() != 2 {
		t.Errorf("signals after stop = %d, want 2", n.Load())
	}
}
