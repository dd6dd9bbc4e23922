// Package thread holds the in-memory message list of each conversation as a
// keyed collection, so optimistic entries can be swapped for server entries
// without duplicates or losses.
package thread

import (
	"sync"

	"github.com/springsconnect/springs/internal/delivery"
	"github.com/springsconnect/springs/internal/message"
)

// Thread is the live message list of one chat.
type Thread struct {
	mu     sync.RWMutex
	chatID string
	byID   map[string]message.Message
}

// New creates an empty thread for chatID.
func New(chatID string) *Thread {
	return &Thread{
		chatID: chatID,
		byID:   make(map[string]message.Message),
	}
}

// ChatID returns the chat this thread belongs to.
func (t *Thread) ChatID() string {
	return t.chatID
}

// Append inserts m as the newest entry. Returns false if the id is already present.
func (t *Thread) Append(m message.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[m.ID]; ok {
		return false
	}
	t.byID[m.ID] = m
	return true
}

// Replace swaps the temp entry for the server-confirmed one in a single step.
// If the server id is already present (the socket echo won the race) the temp
// entry is dropped and the existing entry only moves forward in status.
func (t *Thread) Replace(tempID string, server message.Message) message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byID, tempID)
	if existing, ok := t.byID[server.ID]; ok {
		existing.Status, _ = delivery.Advance(existing.Status, server.Status)
		t.byID[server.ID] = existing
		return existing
	}
	t.byID[server.ID] = server
	return server
}

// Rekey moves the entry at oldID to newID with the given status. Retry uses it
// to start a fresh state machine under a new temp id.
func (t *Thread) Rekey(oldID, newID string, status message.Status) (message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byID[oldID]
	if !ok {
		return message.Message{}, false
	}
	delete(t.byID, oldID)
	m.ID = newID
	if message.IsTemp(newID) {
		m.TempID = newID
	}
	m.Status = status
	t.byID[newID] = m
	return m, true
}

// SetStatus advances the status of id. Regressions and repeats are ignored.
func (t *Thread) SetStatus(id string, status message.Status) (message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byID[id]
	if !ok {
		return message.Message{}, false
	}
	next, changed := delivery.Advance(m.Status, status)
	if !changed {
		return m, false
	}
	m.Status = next
	t.byID[id] = m
	return m, true
}

// MarkFailed moves a sending entry to failed, keeping its id.
func (t *Thread) MarkFailed(id string) (message.Message, bool) {
	return t.SetStatus(id, message.StatusFailed)
}

// Merge folds an incoming message into the thread. Duplicates by id are
// discarded. A pending temp entry with the same sender, recipient, text and
// media URL is taken to be the same message and replaced in place.
// Returns the stored message and whether the thread changed.
func (t *Thread) Merge(in message.Message) (message.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byID[in.ID]; ok {
		return existing, false
	}

	if pending, ok := t.oldestPending(in); ok {
		delete(t.byID, pending.ID)
		in.Status, _ = delivery.Advance(message.StatusSending, in.Status)
		t.byID[in.ID] = in
		return in, true
	}

	t.byID[in.ID] = in
	return in, true
}

// oldestPending finds the earliest sending temp entry that looks like in.
// Identical drafts are confirmed in send order, so the oldest one pairs with
// the echo.
func (t *Thread) oldestPending(in message.Message) (message.Message, bool) {
	var (
		best  message.Message
		found bool
	)
	for _, m := range t.byID {
		if !m.IsTemp() || m.Status != message.StatusSending {
			continue
		}
		if m.FromUserID != in.FromUserID || m.ToUserID != in.ToUserID ||
			m.Text != in.Text || m.MediaURL != in.MediaURL {
			continue
		}
		if !found || m.CreatedAt.Before(best.CreatedAt) ||
			(m.CreatedAt.Equal(best.CreatedAt) && m.ID < best.ID) {
			best, found = m, true
		}
	}
	return best, found
}

// Get returns the entry with the given id.
func (t *Thread) Get(id string) (message.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.byID[id]
	return m, ok
}

// Len returns the number of entries.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Messages returns a snapshot ordered by ascending CreatedAt.
func (t *Thread) Messages() []message.Message {
	t.mu.RLock()
	msgs := make([]message.Message, 0, len(t.byID))
	for _, m := range t.byID {
		msgs = append(msgs, m)
	}
	t.mu.RUnlock()

	message.SortByCreated(msgs)
	return msgs
}

// Registry maps chat ids to their threads.
type Registry struct {
	mu      sync.Mutex
	threads map[string]*Thread
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{threads: make(map[string]*Thread)}
}

// Get returns the thread for chatID, creating it on first use.
func (r *Registry) Get(chatID string) *Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[chatID]
	if !ok {
		t = New(chatID)
		r.threads[chatID] = t
	}
	return t
}

// Lookup returns the thread for chatID without creating it.
func (r *Registry) Lookup(chatID string) (*Thread, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[chatID]
	return t, ok
}

// Find locates a message by id across all threads.
func (r *Registry) Find(id string) (*Thread, message.Message, bool) {
	r.mu.Lock()
	threads := make([]*Thread, 0, len(r.threads))
	for _, t := range r.threads {
		threads = append(threads, t)
	}
	r.mu.Unlock()

	for _, t := range threads {
		if m, ok := t.Get(id); ok {
			return t, m, true
		}
	}
	return nil, message.Message{}, false
}
