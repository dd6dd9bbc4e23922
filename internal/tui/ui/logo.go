package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/status"
)

const logoArt = " ╔═╗╔═╗╦═╗\n ╚═╗╠═╝╠╦╝\n ╚═╝╩  ╩╚═"

// Logo is the header mark. Its color follows the daemon connection so a
// dropped link shows even when the status bar is out of view.
type Logo struct {
	*tview.TextView
	theme *Theme
	state string
}

// NewLogo creates the logo in the booting color.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme}
	l.render()
	return l
}

// SetState recolors the logo for a daemon state such as READY or ERROR.
func (l *Logo) SetState(state string) {
	if state == l.state {
		return
	}
	l.state = state
	l.render()
}

func (l *Logo) color() tcell.Color {
	switch status.State(l.state) {
	case status.Ready:
		return l.theme.OnlineColor
	case status.Reconnecting, status.Connecting:
		return l.theme.FlashWarnColor
	case status.Error:
		return l.theme.FailedColor
	}
	return l.theme.PendingColor
}

func (l *Logo) render() {
	l.Clear()
	tagline := "springs connect"
	if l.state != "" && status.State(l.state) != status.Ready {
		tagline = "springs " + l.state
	}
	_, _ = fmt.Fprintf(l, "[%s::b]%s[-:-:-]\n[%s]%s[-:-:-]",
		colorName(l.color()), logoArt, colorName(l.theme.FgColor), tview.Escape(tagline))
}
