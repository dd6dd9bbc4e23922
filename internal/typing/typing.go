// Package typing turns composer keystrokes into throttled outbound signals and
// inbound signals into a per-user flag that lingers for a fixed window.
package typing

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/timing"
)

const (
	// DefaultLinger is how long a remote typing flag survives without a refresh.
	DefaultLinger = 2 * time.Second
	// DefaultInterval is the minimum spacing of outbound typing signals.
	DefaultInterval = time.Second
)

// Emitter sends typing signals for the local user, at most one per interval
// per chat while keystrokes keep arriving.
type Emitter struct {
	throttle *timing.Throttle[string]
}

// NewEmitter creates an emitter calling send(chatID) for each outbound signal.
func NewEmitter(clock clockwork.Clock, interval time.Duration, send func(chatID string)) *Emitter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Emitter{throttle: timing.NewThrottle(clock, interval, send)}
}

// Keystroke records local typing activity in chatID.
func (e *Emitter) Keystroke(chatID string) {
	e.throttle.Submit(chatID)
}

// Stop drops pending signals.
func (e *Emitter) Stop() {
	e.throttle.Stop()
}

type key struct {
	chatID string
	userID string
}

// Tracker holds remote typing flags keyed by (chat, user).
type Tracker struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	linger  time.Duration
	bus     *bus.Bus
	entries map[key]*entry
}

type entry struct {
	typing   bool
	lastSeen time.Time
	expiry   *timing.Debounce
}

// NewTracker creates a tracker. b may be nil; a nil clock uses the real clock.
func NewTracker(clock clockwork.Clock, linger time.Duration, b *bus.Bus) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if linger <= 0 {
		linger = DefaultLinger
	}
	return &Tracker{
		clock:   clock,
		linger:  linger,
		bus:     b,
		entries: make(map[key]*entry),
	}
}

// Signal marks fromUserID as typing in chatID and restarts the linger countdown.
func (t *Tracker) Signal(chatID, fromUserID string) {
	k := key{chatID: chatID, userID: fromUserID}

	t.mu.Lock()
	e, ok := t.entries[k]
	if !ok {
		e = &entry{}
		e.expiry = timing.NewDebounce(t.clock, t.linger, func() { t.expire(k) })
		t.entries[k] = e
	}
	started := !e.typing
	e.typing = true
	e.lastSeen = t.clock.Now()
	e.expiry.Trigger()
	t.mu.Unlock()

	if started {
		t.bus.Emit(bus.TypingChanged, bus.TypingChange{ChatID: chatID, FromUserID: fromUserID, Typing: true})
	}
}

// IsTyping reports whether fromUserID is currently typing in chatID.
func (t *Tracker) IsTyping(chatID, fromUserID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key{chatID: chatID, userID: fromUserID}]
	return ok && e.typing
}

// Typists returns the users currently typing in chatID.
func (t *Tracker) Typists(chatID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var users []string
	for k, e := range t.entries {
		if k.chatID == chatID && e.typing {
			users = append(users, k.userID)
		}
	}
	return users
}

// Stop cancels every pending countdown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.expiry.Stop()
	}
}

func (t *Tracker) expire(k key) {
	t.mu.Lock()
	e, ok := t.entries[k]
	if !ok || !e.typing || t.clock.Since(e.lastSeen) < t.linger {
		t.mu.Unlock()
		return
	}
	e.typing = false
	t.mu.Unlock()

	t.bus.Emit(bus.TypingChanged, bus.TypingChange{ChatID: k.chatID, FromUserID: k.userID, Typing: false})
}
