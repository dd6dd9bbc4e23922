package media

import "sync"

// Kind distinguishes players that must be force-muted when they lose the claim.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
)

// State is a snapshot of a player.
type State struct {
	ID      string
	Playing bool
	Muted   bool
}

// Player is one on-screen media element.
type Player struct {
	mu       sync.Mutex
	id       string
	kind     Kind
	coord    *Coordinator
	playing  bool
	muted    bool
	unsub    func()
	onChange func(State)
}

// NewPlayer creates an unmounted, paused, muted player.
func NewPlayer(id string, kind Kind, coord *Coordinator) *Player {
	return &Player{id: id, kind: kind, coord: coord, muted: true}
}

// ID returns the element id.
func (p *Player) ID() string { return p.id }

// OnChange registers a callback invoked after every state change.
func (p *Player) OnChange(fn func(State)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Mount subscribes the player to claims made by others.
func (p *Player) Mount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsub != nil {
		return
	}
	p.unsub = p.coord.Subscribe(p.handleClaim)
}

// Unmount stops playback, drops the claim and unsubscribes.
func (p *Player) Unmount() {
	p.mu.Lock()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	p.Pause()
	p.coord.Release(p.id)
}

// Autoplay claims playback on behalf of a visibility trigger. It starts muted
// until the user has unmuted any media once.
func (p *Player) Autoplay() {
	muted := !p.coord.UserHasUnmutedOnce()
	p.coord.Claim(p.id, func() {
		p.update(func() {
			p.playing = true
			p.muted = muted
		})
	})
}

// Unmute is the explicit user gesture: unmute, claim, and allow future
// autoplay to start unmuted.
func (p *Player) Unmute() {
	p.coord.MarkUserUnmuted()
	p.coord.Claim(p.id, func() {
		p.update(func() {
			p.playing = true
			p.muted = false
		})
	})
}

// Mute silences the player without pausing it.
func (p *Player) Mute() {
	p.update(func() { p.muted = true })
}

// Pause stops playback. The claim is kept; see SetVisible for releasing it.
func (p *Player) Pause() {
	p.update(func() { p.playing = false })
}

// SetVisible is the visibility consumer: entering the viewport autoplays,
// leaving it pauses and gives the claim back.
func (p *Player) SetVisible(visible bool) {
	if visible {
		p.Autoplay()
		return
	}
	p.Pause()
	p.coord.Release(p.id)
}

// State returns a snapshot.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{ID: p.id, Playing: p.playing, Muted: p.muted}
}

// Playing reports whether the player is playing.
func (p *Player) Playing() bool { return p.State().Playing }

// Muted reports whether the player is muted.
func (p *Player) Muted() bool { return p.State().Muted }

// Audible reports whether the player is playing with sound.
func (p *Player) Audible() bool {
	s := p.State()
	return s.Playing && !s.Muted
}

func (p *Player) handleClaim(id string) {
	if id == p.id {
		return
	}
	p.update(func() {
		p.playing = false
		if p.kind == KindVideo {
			p.muted = true
		}
	})
}

func (p *Player) update(fn func()) {
	p.mu.Lock()
	before := State{ID: p.id, Playing: p.playing, Muted: p.muted}
	fn()
	after := State{ID: p.id, Playing: p.playing, Muted: p.muted}
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil && before != after {
		cb(after)
	}
}
