// Package visibility fires callbacks when observed elements cross an
// intersection threshold with the viewport. Callbacks fire once per crossing,
// never once per measurement.
package visibility

import "sync"

// DefaultThreshold is the visible fraction used for chat bubbles and autoplay.
const DefaultThreshold = 0.5

// Ratio returns the fraction of an element [top, top+height) that lies inside
// the viewport [viewTop, viewTop+viewHeight). Zero-height elements count as
// fully visible when their top lies inside the viewport.
func Ratio(top, height, viewTop, viewHeight int) float64 {
	if viewHeight <= 0 {
		return 0
	}
	if height <= 0 {
		if top >= viewTop && top < viewTop+viewHeight {
			return 1
		}
		return 0
	}
	lo := max(top, viewTop)
	hi := min(top+height, viewTop+viewHeight)
	if hi <= lo {
		return 0
	}
	return float64(hi-lo) / float64(height)
}

type target struct {
	visible bool
	onEnter func()
	onLeave func()
}

// Observer tracks the visibility state of a set of elements.
type Observer struct {
	mu        sync.Mutex
	threshold float64
	targets   map[string]*target
}

// NewObserver creates an observer. A threshold outside (0, 1] falls back to DefaultThreshold.
func NewObserver(threshold float64) *Observer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Observer{threshold: threshold, targets: make(map[string]*target)}
}

// Observe registers id. Either callback may be nil. Re-observing an id
// replaces its callbacks and keeps its current state.
func (o *Observer) Observe(id string, onEnter, onLeave func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.targets[id]; ok {
		t.onEnter, t.onLeave = onEnter, onLeave
		return
	}
	o.targets[id] = &target{onEnter: onEnter, onLeave: onLeave}
}

// Unobserve forgets id without firing anything.
func (o *Observer) Unobserve(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.targets, id)
}

// Observed reports whether id is registered.
func (o *Observer) Observed(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.targets[id]
	return ok
}

// Update feeds a new visible ratio for id and fires the matching callback if
// the element crossed the threshold.
func (o *Observer) Update(id string, ratio float64) {
	o.mu.Lock()
	t, ok := o.targets[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	visible := ratio >= o.threshold
	if visible == t.visible {
		o.mu.Unlock()
		return
	}
	t.visible = visible
	fn := t.onLeave
	if visible {
		fn = t.onEnter
	}
	o.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Visible reports the last known state of id.
func (o *Observer) Visible(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.targets[id]
	return ok && t.visible
}
