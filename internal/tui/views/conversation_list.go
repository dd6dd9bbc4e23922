package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui/ui"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	convs  []rpc.ConversationInfo
	filter string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Init implements Component.
func (cl *ConversationList) Init() {}

// Start implements Component.
func (cl *ConversationList) Start() {}

// Stop implements Component.
func (cl *ConversationList) Stop() {}

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "o", Description: "Open by name"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list with new data.
func (cl *ConversationList) Update(convs []rpc.ConversationInfo) {
	cl.convs = convs
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

func displayName(c rpc.ConversationInfo) string {
	if c.PeerName != "" {
		return c.PeerName
	}
	return c.PeerID
}

func (cl *ConversationList) visible() []rpc.ConversationInfo {
	if cl.filter == "" {
		return cl.convs
	}
	var out []rpc.ConversationInfo
	for _, c := range cl.convs {
		if containsFold(displayName(c), cl.filter) || containsFold(c.Preview, cl.filter) {
			out = append(out, c)
		}
	}
	return out
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" PEER", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	rows := cl.visible()
	for i, c := range rows {
		row := i + 1
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(cleanLine(displayName(c), 0))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(cleanLine(c.Preview, 0))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(c.LastMessageAtMs, time.Now())).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(rows), len(cl.convs), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectedPeer returns the peer id of the highlighted row.
func (cl *ConversationList) SelectedPeer() string {
	row, _ := cl.GetSelection()
	return cl.PeerByIndex(row)
}

// PeerByIndex returns the peer id of the Nth visible conversation (1-based).
func (cl *ConversationList) PeerByIndex(n int) string {
	rows := cl.visible()
	if n < 1 || n > len(rows) {
		return ""
	}
	return rows[n-1].PeerID
}

// FindPeer resolves a name or id typed at the prompt to a peer id.
func (cl *ConversationList) FindPeer(query string) string {
	for _, c := range cl.convs {
		if c.PeerID == query || strings.EqualFold(c.PeerName, query) {
			return c.PeerID
		}
	}
	for _, c := range cl.convs {
		if containsFold(c.PeerName, query) {
			return c.PeerID
		}
	}
	return ""
}

// CompletePeers returns the display names of peers whose name or id starts
// with prefix, ignoring case.
func (cl *ConversationList) CompletePeers(prefix string) []string {
	if prefix == "" {
		return nil
	}
	p := strings.ToLower(prefix)
	var out []string
	for _, c := range cl.convs {
		name := displayName(c)
		if strings.HasPrefix(strings.ToLower(name), p) || strings.HasPrefix(strings.ToLower(c.PeerID), p) {
			out = append(out, name)
		}
	}
	return out
}

func formatTimestamp(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
