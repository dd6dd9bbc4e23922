// Package status tracks the daemon's connection lifecycle.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/springsconnect/springs/internal/bus"
)

// State represents a daemon runtime state.
type State string

const (
	Booting      State = "BOOTING"
	Connecting   State = "CONNECTING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Stopping     State = "STOPPING"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {Connecting, Error, Stopping},
	Connecting:   {Ready, Reconnecting, Error, Stopping},
	Ready:        {Reconnecting, Error, Stopping},
	Reconnecting: {Ready, Error, Stopping},
	Error:        {Booting, Stopping},
	Stopping:     {},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	m.bus.Emit(bus.ConnectionChanged, StatusChange{From: from, To: to})
	return nil
}

// Connected moves to Ready from Connecting or Reconnecting.
func (m *Machine) Connected() error {
	return m.Transition(Ready)
}

// Disconnected moves to Reconnecting. It is a no-op unless the socket was up.
func (m *Machine) Disconnected() error {
	if m.Current() != Ready {
		return nil
	}
	return m.Transition(Reconnecting)
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
