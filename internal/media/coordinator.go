// Package media keeps at most one audio/video element playing unmuted at a
// time across any number of independently rendered players.
package media

import "sync"

// Coordinator arbitrates playback between players. It is injected into every
// player rather than living in a package global.
type Coordinator struct {
	claimMu sync.Mutex

	mu          sync.Mutex
	holder      string
	unmutedOnce bool
	subs        map[int]func(id string)
	next        int
}

// NewCoordinator creates a coordinator with no active holder.
func NewCoordinator() *Coordinator {
	return &Coordinator{subs: make(map[int]func(string))}
}

// Claim makes id the active element. onWin, when set, runs before any
// subscriber is told, and claims are serialized, so the winner is playing
// before a later claim can pause it. Callbacks must not claim again.
func (c *Coordinator) Claim(id string, onWin func()) {
	c.claimMu.Lock()
	defer c.claimMu.Unlock()

	c.mu.Lock()
	c.holder = id
	subs := make([]func(string), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	if onWin != nil {
		onWin()
	}
	for _, fn := range subs {
		fn(id)
	}
}

// Release clears the holder if id currently holds the claim.
func (c *Coordinator) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder == id {
		c.holder = ""
	}
}

// Holder returns the id of the active element, or "" when none.
func (c *Coordinator) Holder() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holder
}

// Subscribe registers fn to receive the id of every claim. The returned
// function unsubscribes.
func (c *Coordinator) Subscribe(fn func(id string)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// MarkUserUnmuted records that the user unmuted media by an explicit gesture.
// From then on autoplay may start unmuted.
func (c *Coordinator) MarkUserUnmuted() {
	c.mu.Lock()
	c.unmutedOnce = true
	c.mu.Unlock()
}

// UserHasUnmutedOnce reports whether MarkUserUnmuted has been called.
func (c *Coordinator) UserHasUnmutedOnce() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unmutedOnce
}
