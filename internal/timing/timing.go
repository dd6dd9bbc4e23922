// Package timing provides the debounce and throttle primitives behind typing
// indicators and read receipts. All timers run on a clockwork.Clock so tests
// can drive them with a fake clock.
package timing

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debounce calls fn once after window has passed without a new Trigger.
type Debounce struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	window time.Duration
	fn     func()
	timer  clockwork.Timer
	gen    uint64
}

// NewDebounce creates a debouncer. A nil clock uses the real clock.
func NewDebounce(clock clockwork.Clock, window time.Duration, fn func()) *Debounce {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debounce{clock: clock, window: window, fn: fn}
}

// Trigger (re)starts the countdown.
func (d *Debounce) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.window, func() { d.fire(gen) })
}

// Stop cancels a pending countdown without calling fn.
func (d *Debounce) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a countdown is running.
func (d *Debounce) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debounce) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		// Superseded by a later Trigger or Stop.
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Throttle emits at most one key per window. The first key of an idle throttle
// is emitted immediately; keys submitted while a window is open are queued
// (deduplicated, in arrival order) and released one per window.
type Throttle[K comparable] struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	window  time.Duration
	fn      func(K)
	open    bool
	queue   []K
	queued  map[K]struct{}
	timer   clockwork.Timer
	stopped bool
}

// NewThrottle creates a throttle. A nil clock uses the real clock.
func NewThrottle[K comparable](clock clockwork.Clock, window time.Duration, fn func(K)) *Throttle[K] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle[K]{
		clock:  clock,
		window: window,
		fn:     fn,
		queued: make(map[K]struct{}),
	}
}

// Submit requests an emission for k.
func (t *Throttle[K]) Submit(k K) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.open {
		if _, ok := t.queued[k]; !ok {
			t.queued[k] = struct{}{}
			t.queue = append(t.queue, k)
		}
		t.mu.Unlock()
		return
	}
	t.open = true
	t.timer = t.clock.AfterFunc(t.window, t.release)
	t.mu.Unlock()

	t.fn(k)
}

// Pending returns the number of queued keys.
func (t *Throttle[K]) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Stop drops queued keys and rejects further submissions.
func (t *Throttle[K]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.queue = nil
	clear(t.queued)
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Throttle[K]) release() {
	t.mu.Lock()
	if t.stopped || len(t.queue) == 0 {
		t.open = false
		t.timer = nil
		t.mu.Unlock()
		return
	}
	k := t.queue[0]
	t.queue = t.queue[1:]
	delete(t.queued, k)
	t.timer = t.clock.AfterFunc(t.window, t.release)
	t.mu.Unlock()

	t.fn(k)
}
