package delivery

import (
	"math/rand"
	"testing"

	"github.com/springsconnect/springs/internal/message"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from message.Status
		to   message.Status
	}{
		{message.StatusSending, message.StatusSent},
		{message.StatusSending, message.StatusDelivered},
		{message.StatusSending, message.StatusFailed},
		{message.StatusSent, message.StatusDelivered},
		{message.StatusSent, message.StatusSeen},
		{message.StatusDelivered, message.StatusSeen},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if err := Transition(tt.from, tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from message.Status
		to   message.Status
	}{
		{message.StatusSeen, message.StatusSent},
		{message.StatusDelivered, message.StatusSent},
		{message.StatusSeen, message.StatusDelivered},
		{message.StatusFailed, message.StatusSending},
		{message.StatusFailed, message.StatusSent},
		{message.StatusSent, message.StatusFailed},
		{message.StatusSending, message.StatusSeen},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if err := Transition(tt.from, tt.to); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
		})
	}
}

func TestAdvanceSeenIdempotent(t *testing.T) {
	s, changed := Advance(message.StatusDelivered, message.StatusSeen)
	if !changed || s != message.StatusSeen {
		t.Fatalf("Advance(delivered, seen) = %s, %v", s, changed)
	}
	s, changed = Advance(s, message.StatusSeen)
	if changed || s != message.StatusSeen {
		t.Errorf("second seen = %s, %v; want seen, false", s, changed)
	}
}

// TestAdvanceNeverRegresses drives random socket-style events against one
// message and checks the status rank only ever increases.
func TestAdvanceNeverRegresses(t *testing.T) {
	rank := map[message.Status]int{
		message.StatusSending:   0,
		message.StatusSent:      1,
		message.StatusDelivered: 2,
		message.StatusSeen:      3,
	}
	events := []message.Status{message.StatusSent, message.StatusDelivered, message.StatusSeen}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 500; run++ {
		cur := message.StatusSending
		for step := 0; step < 20; step++ {
			next, _ := Advance(cur, events[rng.Intn(len(events))])
			if rank[next] < rank[cur] {
				t.Fatalf("run %d: regressed %s -> %s", run, cur, next)
			}
			cur = next
		}
	}
}

func TestForPresence(t *testing.T) {
	if got := ForPresence(true); got != message.StatusDelivered {
		t.Errorf("ForPresence(true) = %s, want delivered", got)
	}
	if got := ForPresence(false); got != message.StatusSent {
		t.Errorf("ForPresence(false) = %s, want sent", got)
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(message.StatusFailed) || !Terminal(message.StatusSeen) {
		t.Error("failed and seen should be terminal")
	}
	if Terminal(message.StatusSending) {
		t.Error("sending should not be terminal")
	}
}
