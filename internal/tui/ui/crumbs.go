package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumb is one entry of the navigation trail.
type Crumb struct {
	Page  string
	Label string
}

// Crumbs shows where the user is, e.g. "Conversations > Ada > Details".
type Crumbs struct {
	*tview.TextView
	theme *Theme
	maxW  int
}

// NewCrumbs creates the trail bar. Labels longer than 24 cells are cut.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme, maxW: 24}
}

// Update renders trail. The last crumb is the active page.
func (c *Crumbs) Update(trail []Crumb) {
	c.Clear()
	_, _ = fmt.Fprint(c, c.format(trail))
}

func (c *Crumbs) format(trail []Crumb) string {
	parts := make([]string, 0, len(trail))
	for i, cr := range trail {
		label := tview.Escape(truncate(cr.Label, c.maxW))
		if i == len(trail)-1 {
			parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]",
				colorName(c.theme.CrumbActiveFg), colorName(c.theme.CrumbActiveBg), label))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:] %s [-:-:-]",
			colorName(c.theme.CrumbInactiveFg), colorName(c.theme.CrumbInactiveBg), label))
	}
	return strings.Join(parts, " > ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
