// Package delivery enforces the per-message status machine:
// sending -> sent|delivered -> seen, or sending -> failed.
package delivery

import (
	"fmt"
	"slices"

	"github.com/springsconnect/springs/internal/message"
)

// validTransitions defines the forward edges allowed for a single message id.
// failed and seen are terminal; leaving failed requires a new id (retry).
var validTransitions = map[message.Status][]message.Status{
	message.StatusSending:   {message.StatusSent, message.StatusDelivered, message.StatusFailed},
	message.StatusSent:      {message.StatusDelivered, message.StatusSeen},
	message.StatusDelivered: {message.StatusSeen},
	message.StatusSeen:      {},
	message.StatusFailed:    {},
}

// Transition validates a status change. It returns an error for regressions,
// for edges out of a terminal state and for unknown states.
func Transition(from, to message.Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// Advance applies to on top of cur. Invalid or repeated transitions are no-ops,
// so applying the same signal twice (e.g. two read receipts) is idempotent.
func Advance(cur, to message.Status) (message.Status, bool) {
	if cur == to {
		return cur, false
	}
	if err := Transition(cur, to); err != nil {
		return cur, false
	}
	return to, true
}

// ForPresence picks the post-send status from the recipient's presence at send time.
// This approximates delivery; there is no recipient-side delivery acknowledgement.
func ForPresence(recipientOnline bool) message.Status {
	if recipientOnline {
		return message.StatusDelivered
	}
	return message.StatusSent
}

// Terminal reports whether no further transition can leave s.
func Terminal(s message.Status) bool {
	return len(validTransitions[s]) == 0
}
