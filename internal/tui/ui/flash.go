package ui

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/status"
)

// FlashLevel is the urgency of a notice.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 4 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  12 * time.Second,
}

// FlashMessage is one notice shown under the page area.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current notice. A notice never replaces a more urgent
// one that is still showing, so a failed send is not hidden by a routine
// "connected".
type FlashModel struct {
	clock clockwork.Clock

	mu      sync.Mutex
	current FlashMessage
	watchCh chan FlashMessage
}

// NewFlashModel creates an empty model. A nil clock uses the real clock.
func NewFlashModel(clock clockwork.Clock) *FlashModel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FlashModel{
		clock:   clock,
		watchCh: make(chan FlashMessage, 8),
	}
}

// Info shows a routine notice.
func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo) }

// Warn shows something the user can act on.
func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn) }

// Err shows a failed operation.
func (f *FlashModel) Err(err error) { f.set(err.Error(), FlashErr) }

func (f *FlashModel) set(msg string, level FlashLevel) {
	now := f.clock.Now()
	fm := FlashMessage{Text: msg, Level: level, Expires: now.Add(flashTTL[level])}

	f.mu.Lock()
	if now.Before(f.current.Expires) && f.current.Level > level {
		f.mu.Unlock()
		return
	}
	f.current = fm
	f.mu.Unlock()

	select {
	case f.watchCh <- fm:
	default:
	}
}

// GetMessage returns the current notice, or nil once it expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.clock.Now().Before(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns a channel that receives every notice shown.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FromEvent shows the notice a daemon event calls for. It reports whether the
// event produced one.
func (f *FlashModel) FromEvent(kind string, payload json.RawMessage) bool {
	switch kind {
	case bus.MessageFailed:
		var ref bus.MessageRef
		if json.Unmarshal(payload, &ref) != nil || ref.Error == "" {
			f.Warn("Message not sent, press r to retry")
			return true
		}
		f.Warn(fmt.Sprintf("Message not sent (%s), press r to retry", ref.Error))
	case bus.RecordingStarted:
		f.Info("Recording, press R to stop and send")
	case bus.RecordingStopped:
		var st bus.RecordingState
		_ = json.Unmarshal(payload, &st)
		switch {
		case st.Error != "":
			f.set("Recording failed: "+st.Error, FlashErr)
		case st.Limit > 0 && st.Elapsed >= st.Limit:
			f.Warn(fmt.Sprintf("Recording stopped at the %s limit", st.Limit.Round(time.Second)))
		default:
			return false
		}
	case bus.ConnectionChanged:
		var ch status.StatusChange
		if json.Unmarshal(payload, &ch) != nil {
			return false
		}
		switch ch.To {
		case status.Reconnecting:
			f.Warn("Connection lost, reconnecting")
		case status.Error:
			f.set("Daemon cannot reach the chat server", FlashErr)
		case status.Ready:
			if ch.From != status.Reconnecting {
				return false
			}
			f.Info("Reconnected")
		default:
			return false
		}
	default:
		return false
	}
	return true
}

// FlashBar displays the current notice.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates the notice bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	glyph, color := "•", fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashWarn:
		glyph, color = "▲", fb.theme.FlashWarnColor
	case FlashErr:
		glyph, color = "✖", fb.theme.FlashErrColor
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s %s[-]", colorName(color), glyph, tview.Escape(msg.Text))
}
