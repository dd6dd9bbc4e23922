package timing

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// waitFor polls cond until it holds or a second has passed. Fake clock
// callbacks may run on their own goroutine after Advance returns.
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

func TestDebounceFiresAfterSilence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	d := NewDebounce(clock, 2*time.Second, func() { fired.Add(1) })

	d.Trigger()
	clock.Advance(2100 * time.Millisecond)
	waitFor(t, "debounce fire", func() bool { return fired.Load() == 1 })

	if d.Pending() {
		t.Error("Pending() = true after fire")
	}
}

func TestDebounceResetOnTrigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	d := NewDebounce(clock, 2*time.Second, func() { fired.Add(1) })

	d.Trigger()
	clock.Advance(1900 * time.Millisecond)
	d.Trigger()
	clock.Advance(200 * time.Millisecond) // 2100ms after the first trigger

	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("debounce fired at the original boundary despite reset")
	}

	clock.Advance(1900 * time.Millisecond)
	waitFor(t, "debounce fire after reset", func() bool { return fired.Load() == 1 })
}

func TestDebounceStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	d := NewDebounce(clock, time.Second, func() { fired.Add(1) })

	d.Trigger()
	d.Stop()
	clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("debounce fired after Stop")
	}
}

func TestThrottleOnePerWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var mu sync.Mutex
	var got []string
	th := NewThrottle(clock, 500*time.Millisecond, func(k string) {
		mu.Lock()
		got = append(got, k)
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(got)
	}

	th.Submit("m1")
	th.Submit("m2")
	th.Submit("m3")
	th.Submit("m2") // deduplicated while queued

	if count() != 1 {
		t.Fatalf("emitted %d immediately, want 1", count())
	}
	if th.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", th.Pending())
	}

	clock.Advance(499 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if count() != 1 {
		t.Fatalf("emitted %d inside the first window, want 1", count())
	}

	clock.Advance(time.Millisecond)
	waitFor(t, "second emission", func() bool { return count() == 2 })
	clock.Advance(500 * time.Millisecond)
	waitFor(t, "third emission", func() bool { return count() == 3 })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"m1", "m2", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestThrottleIdleAgainAfterDrain(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var n atomic.Int32
	th := NewThrottle(clock, 500*time.Millisecond, func(string) { n.Add(1) })

	th.Submit("a")
	clock.Advance(500 * time.Millisecond)
	// Window closes with an empty queue; the next submit is immediate.
	time.Sleep(20 * time.Millisecond)
	th.Submit("b")
	if n.Load() != 2 {
		t.Errorf("emissions = %d, want 2", n.Load())
	}
}

func TestThrottleStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var n atomic.Int32
	th := NewThrottle(clock, 500*time.Millisecond, func(string) { n.Add(1) })

	th.Submit("a")
	th.Submit("b")
	th.Stop()
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	th.Submit("c")

	if n.Load() != 1 {
		t.Errorf("emissions = %d, want 1", n.Load())
	}
}
