package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui/ui"
)

// StatusBar displays the connection state, the active peer's presence and
// a running capture.
type StatusBar struct {
	*tview.TextView
	theme     *ui.Theme
	profile   string
	state     string
	peer      *rpc.PeerInfo
	recording time.Time
	flash     string
	now       func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme, now: time.Now}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetPeer shows presence of the active peer. nil clears it.
func (sb *StatusBar) SetPeer(p *rpc.PeerInfo) {
	sb.peer = p
	sb.render()
}

// SetRecording shows the elapsed time of a capture started at since.
// The zero time hides it.
func (sb *StatusBar) SetRecording(since time.Time) {
	sb.recording = since
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

// Tick re-renders time dependent parts.
func (sb *StatusBar) Tick() { sb.render() }

func (sb *StatusBar) render() {
	sb.Clear()
	now := sb.now()

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", sb.profile, sb.state)
	if sb.peer != nil {
		line += " | " + presenceText(*sb.peer, now, sb.theme)
	}
	if !sb.recording.IsZero() {
		line += fmt.Sprintf(" | [%s::b]● REC %s[-:-:-]",
			ui.ColorName(sb.theme.RecordingColor), formatElapsed(now.Sub(sb.recording)))
	}
	line += " | " + now.Format("15:04")
	if sb.flash != "" {
		line += fmt.Sprintf(" | [%s]%s[-]", ui.ColorName(sb.theme.FlashInfoColor), tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}

// presenceText renders online, typing or last-seen for a peer.
func presenceText(p rpc.PeerInfo, now time.Time, theme *ui.Theme) string {
	name := tview.Escape(cleanLine(peerName(p), 32))
	switch {
	case p.Typing:
		return fmt.Sprintf("%s [%s::i]typing…[-:-:-]", name, ui.ColorName(theme.TypingColor))
	case p.Online:
		return fmt.Sprintf("%s [%s]● online[-]", name, ui.ColorName(theme.OnlineColor))
	case p.LastActiveAtMs > 0:
		return fmt.Sprintf("%s last seen %s", name, lastSeen(time.UnixMilli(p.LastActiveAtMs), now))
	}
	return name + " offline"
}

func lastSeen(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return formatTimestamp(t.UnixMilli(), now)
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
