// Package presence tracks which users currently hold a live socket session.
package presence

import (
	"sync"

	"github.com/springsconnect/springs/internal/bus"
)

// Tracker is the set of user ids known to be online.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]bool
	bus    *bus.Bus
}

// NewTracker creates an empty tracker. b may be nil.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{online: make(map[string]bool), bus: b}
}

// Set records a presence change and publishes it when the state flips.
func (t *Tracker) Set(userID string, online bool) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	prev := t.online[userID]
	if online {
		t.online[userID] = true
	} else {
		delete(t.online, userID)
	}
	t.mu.Unlock()

	if prev != online {
		t.bus.Emit(bus.PresenceChanged, bus.PresenceChange{UserID: userID, Online: online})
	}
}

// IsOnline reports whether userID has a live session.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.online[userID]
}

// Reset forgets everyone, e.g. after our own socket dropped.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.online = make(map[string]bool)
	t.mu.Unlock()
}
