package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// MenuHint is one key shown in the header menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool
	// Alert marks a key that acts on something needing attention, like
	// retry while a failed message is selected.
	Alert bool
}

// Component is a page the app can push.
type Component interface {
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
}

// Menu lists the keys of the current page, one per line.
type Menu struct {
	*tview.TextView
	theme *Theme
	hints []MenuHint
}

// NewMenu creates an empty menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update replaces the hints. Alert hints are listed first.
func (m *Menu) Update(hints []MenuHint) {
	ordered := make([]MenuHint, 0, len(hints))
	for _, h := range hints {
		if h.Alert {
			ordered = append(ordered, h)
		}
	}
	for _, h := range hints {
		if !h.Alert {
			ordered = append(ordered, h)
		}
	}
	m.hints = ordered
	m.render()
}

// Hints returns the hints in display order.
func (m *Menu) Hints() []MenuHint {
	return append([]MenuHint(nil), m.hints...)
}

func (m *Menu) render() {
	m.Clear()
	for _, h := range m.hints {
		kc := m.theme.MenuKeyColor
		switch {
		case h.Alert:
			kc = m.theme.FailedColor
		case h.Numeric:
			kc = m.theme.NumericKeyColor
		}
		desc := tview.Escape(h.Description)
		if h.Alert {
			desc = fmt.Sprintf("[%s]%s[-]", colorName(m.theme.FailedColor), desc)
		}
		_, _ = fmt.Fprintf(m, "[%s::b]<%s>[-:-:-] %s\n", colorName(kc), tview.Escape(h.Key), desc)
	}
}
