package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui/ui"
)

// PeerDetails displays what is known about the active chat partner.
type PeerDetails struct {
	*tview.TextView
	theme *ui.Theme
}

// NewPeerDetails creates a new peer details view.
func NewPeerDetails(theme *ui.Theme) *PeerDetails {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &PeerDetails{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (pd *PeerDetails) Name() string { return "Details" }

// Init implements Component.
func (pd *PeerDetails) Init() {}

// Start implements Component.
func (pd *PeerDetails) Start() {}

// Stop implements Component.
func (pd *PeerDetails) Stop() {}

// Hints implements Component.
func (pd *PeerDetails) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders peer details for the conversation chatID.
func (pd *PeerDetails) Update(chatID string, p rpc.PeerInfo, messageCount int) {
	pd.Clear()

	fg := ui.ColorName(pd.theme.FgColor)
	ct := ui.ColorName(pd.theme.CounterColor)

	username := p.Username
	if username == "" {
		username = "-"
	}

	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]      [%s]%s[-]\n"+
			" [%s::b]Username:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]User ID:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Chat ID:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Presence:[-:-:-]  %s\n"+
			" [%s::b]Messages:[-:-:-]  [%s]%d[-]",
		fg, ct, tview.Escape(cleanLine(peerName(p), 32)),
		fg, ct, tview.Escape(username),
		fg, ct, p.ID,
		fg, ct, chatID,
		fg, presenceText(p, time.Now(), pd.theme),
		fg, ct, messageCount,
	)

	_, _ = fmt.Fprint(pd, text)
	pd.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(cleanLine(peerName(p), 32))))
}
