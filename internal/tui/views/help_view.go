package views

import (
	"fmt"

	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Init implements Component.
func (hv *HelpView) Init() {}

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	key := func(k string) string { return fmt.Sprintf("[%s]%-14s[-:-:-]", kc, k) }

	sections := []struct {
		title string
		rows  [][2]string
	}{
		{"Global Keys", [][2]string{
			{":", "Command mode"},
			{"/", "Filter conversations"},
			{"?", "Help"},
			{"Esc", "Cancel / Go back"},
			{"q", "Quit"},
			{"Ctrl-C", "Quit immediately"},
		}},
		{"Conversation List", [][2]string{
			{"Enter", "Open conversation"},
			{"o", "Open by peer name (Tab completes)"},
			{"1-9", "Jump to Nth conversation"},
			{"0", "Clear filter"},
			{"j/k", "Move down / up"},
		}},
		{"Message Thread", [][2]string{
			{"i", "Focus composer"},
			{"Enter", "Send message (in composer)"},
			{"j/k", "Select next / previous message"},
			{"r", "Retry the selected failed message"},
			{"m", "Unmute the selected voice message"},
			{"R", "Start / stop and send a voice recording"},
			{"d", "Show peer details"},
		}},
		{"Commands (: mode)", [][2]string{
			{":open <peer>", "Open a chat by user id or name"},
			{":retry", "Retry the selected failed message"},
			{":record", "Start / stop a voice recording"},
			{":help", "Show this help"},
			{":quit", "Quit application"},
		}},
	}

	for _, sec := range sections {
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, r := range sec.rows {
			_, _ = fmt.Fprintf(hv, "  %s %s\n", key(r[0]), r[1])
		}
	}
}
