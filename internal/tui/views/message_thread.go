package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rivo/tview"
	"github.com/rivo/uniseg"
	"github.com/springsconnect/springs/internal/media"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui/ui"
	"github.com/springsconnect/springs/internal/visibility"
)

const defaultWrapWidth = 78

// bubble is one rendered message and the rows it occupies in the text view.
type bubble struct {
	msg    message.Message
	top    int
	height int
}

// MessageThread displays the messages of one conversation, a typing line and
// a composer. It reports which bubbles are on screen after every draw.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *Composer

	me       string
	peer     rpc.PeerInfo
	msgs     []message.Message
	bubbles  []bubble
	selected int
	width    int

	observer *visibility.Observer
	coord    *media.Coordinator
	players  map[string]*media.Player

	onSeen    func(messageID string)
	onRefresh func()
}

// NewMessageThread creates a new message thread view. Audio bubbles share
// coord so only one of them plays at a time.
func NewMessageThread(theme *ui.Theme, coord *media.Coordinator) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWrap(false)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)

	composer := NewComposer(theme)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	return &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typing,
		composer: composer,
		selected: -1,
		observer: visibility.NewObserver(visibility.DefaultThreshold),
		coord:    coord,
		players:  make(map[string]*media.Player),
	}
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if name := peerName(mt.peer); name != "" {
		return name
	}
	return "Messages"
}

// Init implements Component.
func (mt *MessageThread) Init() {}

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component. It tears down every player so nothing keeps
// the playback claim after the thread is closed.
func (mt *MessageThread) Stop() {
	for id, p := range mt.players {
		p.Unmount()
		mt.observer.Unobserve(id)
		delete(mt.players, id)
	}
	for _, b := range mt.bubbles {
		mt.observer.Unobserve(b.msg.ID)
	}
	mt.bubbles = nil
	mt.msgs = nil
	mt.selected = -1
	mt.messages.Clear()
	mt.composer.SetText("")
}

// Hints implements Component. Retry is flagged while a failed message is
// selected.
func (mt *MessageThread) Hints() []ui.MenuHint {
	sel := mt.SelectedMessage()
	failed := sel != nil && sel.Status == message.StatusFailed
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "j/k", Description: "Select"},
		{Key: "r", Description: "Retry", Alert: failed},
		{Key: "m", Description: "Unmute"},
		{Key: "R", Description: "Record"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetMe sets the local user id used to tell incoming from outgoing bubbles.
func (mt *MessageThread) SetMe(userID string) { mt.me = userID }

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) { mt.composer.SetOnSend(fn) }

// SetOnTyping sets the callback fired on composer edits.
func (mt *MessageThread) SetOnTyping(fn func()) { mt.composer.SetOnTyping(fn) }

// SetOnSeen sets the callback fired when an incoming bubble becomes visible.
func (mt *MessageThread) SetOnSeen(fn func(messageID string)) { mt.onSeen = fn }

// SetOnRefresh sets the callback used to ask for a redraw after player
// state changes outside of a draw.
func (mt *MessageThread) SetOnRefresh(fn func()) { mt.onRefresh = fn }

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *Composer { return mt.composer }

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// SetPeer updates the header and typing line.
func (mt *MessageThread) SetPeer(p rpc.PeerInfo) {
	mt.peer = p
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(cleanLine(mt.Name(), 40))))
	mt.typing.Clear()
	if p.Typing {
		_, _ = fmt.Fprintf(mt.typing, " [%s::i]%s is typing…[-:-:-]",
			ui.ColorName(mt.theme.TypingColor), tview.Escape(cleanLine(mt.Name(), 40)))
	}
}

// Update replaces the thread with msgs, oldest first.
func (mt *MessageThread) Update(msgs []message.Message) {
	prevSelected := mt.SelectedMessage()
	atEnd := mt.selected < 0 || mt.selected == len(mt.bubbles)-1

	mt.msgs = append([]message.Message(nil), msgs...)
	mt.sync()
	mt.render()

	mt.selected = -1
	if prevSelected != nil {
		for i, b := range mt.bubbles {
			if b.msg.ID == prevSelected.ID || (prevSelected.TempID != "" && b.msg.TempID == prevSelected.TempID) {
				mt.selected = i
				break
			}
		}
	}
	if mt.selected >= 0 && !atEnd {
		mt.highlight()
		return
	}
	mt.selected = len(mt.bubbles) - 1
	mt.highlight()
	mt.messages.ScrollToEnd()
}

// Refresh re-renders the current messages, picking up player state.
func (mt *MessageThread) Refresh() {
	mt.render()
	mt.highlight()
}

// sync registers observers and players for the current messages and drops
// those that are gone.
func (mt *MessageThread) sync() {
	present := make(map[string]bool, len(mt.msgs))
	for _, m := range mt.msgs {
		present[m.ID] = true
	}
	for id, p := range mt.players {
		if !present[id] {
			p.Unmount()
			delete(mt.players, id)
		}
	}
	for _, b := range mt.bubbles {
		if !present[b.msg.ID] {
			mt.observer.Unobserve(b.msg.ID)
		}
	}

	for _, m := range mt.msgs {
		if m.IsTemp() {
			continue
		}
		var p *media.Player
		if m.Kind == message.KindAudio {
			p = mt.players[m.ID]
			if p == nil {
				p = media.NewPlayer(m.ID, media.KindAudio, mt.coord)
				p.OnChange(func(media.State) {
					if mt.onRefresh != nil {
						mt.onRefresh()
					}
				})
				p.Mount()
				mt.players[m.ID] = p
			}
		}
		unread := m.FromUserID != mt.me && m.Status != message.StatusSeen
		if p == nil && !unread {
			mt.observer.Unobserve(m.ID)
			continue
		}
		id := m.ID
		mt.observer.Observe(id, func() {
			if unread && mt.onSeen != nil {
				mt.onSeen(id)
			}
			if p != nil {
				p.SetVisible(true)
			}
		}, func() {
			if p != nil {
				p.SetVisible(false)
			}
		})
	}
}

func (mt *MessageThread) wrapWidth() int {
	_, _, w, _ := mt.messages.GetInnerRect()
	if w <= 2 {
		return defaultWrapWidth
	}
	return w - 2
}

func (mt *MessageThread) render() {
	mt.width = mt.wrapWidth()
	mt.messages.Clear()
	mt.bubbles = mt.bubbles[:0]

	var sb strings.Builder
	row := 0
	for i, m := range mt.msgs {
		var state *media.State
		if p := mt.players[m.ID]; p != nil {
			s := p.State()
			state = &s
		}
		lines := renderBubble(m, mt.me, peerName(mt.peer), mt.width, state, mt.theme)
		_, _ = fmt.Fprintf(&sb, `["%s"]`, regionID(i))
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString(`[""]` + "\n\n")
		mt.bubbles = append(mt.bubbles, bubble{msg: m, top: row, height: len(lines)})
		row += len(lines) + 1
	}
	mt.messages.SetText(sb.String())
}

// ReportVisibility feeds the on-screen fraction of every bubble to the
// observer. It is called after each draw; a width change triggers a relayout.
func (mt *MessageThread) ReportVisibility() {
	if mt.wrapWidth() != mt.width {
		mt.Refresh()
		if mt.onRefresh != nil {
			mt.onRefresh()
		}
		return
	}
	viewTop, _ := mt.messages.GetScrollOffset()
	_, _, _, viewHeight := mt.messages.GetInnerRect()
	for _, b := range mt.bubbles {
		if b.msg.IsTemp() {
			continue
		}
		mt.observer.Update(b.msg.ID, visibility.Ratio(b.top, b.height, viewTop, viewHeight))
	}
}

// SelectNext moves the selection down one bubble.
func (mt *MessageThread) SelectNext() {
	if mt.selected < len(mt.bubbles)-1 {
		mt.selected++
		mt.highlight()
	}
}

// SelectPrev moves the selection up one bubble.
func (mt *MessageThread) SelectPrev() {
	if mt.selected > 0 {
		mt.selected--
		mt.highlight()
	}
}

// SelectedMessage returns the highlighted message, or nil.
func (mt *MessageThread) SelectedMessage() *message.Message {
	if mt.selected < 0 || mt.selected >= len(mt.bubbles) {
		return nil
	}
	m := mt.bubbles[mt.selected].msg
	return &m
}

// Unmute unmutes the selected audio bubble.
func (mt *MessageThread) Unmute() bool {
	m := mt.SelectedMessage()
	if m == nil {
		return false
	}
	p := mt.players[m.ID]
	if p == nil {
		return false
	}
	p.Unmute()
	return true
}

// Player returns the player of an audio bubble.
func (mt *MessageThread) Player(messageID string) *media.Player {
	return mt.players[messageID]
}

func (mt *MessageThread) highlight() {
	if mt.selected < 0 || mt.selected >= len(mt.bubbles) {
		mt.messages.Highlight()
		return
	}
	mt.messages.Highlight(regionID(mt.selected))
	mt.messages.ScrollToHighlight()
}

func regionID(i int) string { return "b" + strconv.Itoa(i) }

func peerName(p rpc.PeerInfo) string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Username != "":
		return p.Username
	}
	return p.ID
}

// renderBubble lays out one message as tagged lines of at most width cells.
func renderBubble(m message.Message, me, peer string, width int, player *media.State, theme *ui.Theme) []string {
	sender := peer
	if sender == "" {
		sender = m.FromUserID
	}
	outgoing := m.FromUserID == me
	if outgoing {
		sender = "You"
	}

	header := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]",
		tview.Escape(cleanLine(sender, 32)), m.CreatedAt.Local().Format(time.Kitchen))
	if outgoing {
		header += " " + statusGlyph(m.Status, theme)
	}

	lines := []string{header}
	switch m.Kind {
	case message.KindAudio:
		lines = append(lines, audioLine(player, theme))
	case message.KindImage:
		lines = append(lines, "▣ image [::d]"+tview.Escape(m.MediaURL)+"[-:-:-]")
	}
	for _, l := range wrapText(cleanText(m.Text), width) {
		lines = append(lines, tview.Escape(l))
	}
	return lines
}

// statusGlyph renders the delivery state of an outgoing message.
func statusGlyph(s message.Status, theme *ui.Theme) string {
	switch s {
	case message.StatusSending:
		return fmt.Sprintf("[%s]…[-]", ui.ColorName(theme.PendingColor))
	case message.StatusSent:
		return "✓"
	case message.StatusDelivered:
		return "✓✓"
	case message.StatusSeen:
		return fmt.Sprintf("[%s]✓✓[-]", ui.ColorName(theme.SeenColor))
	case message.StatusFailed:
		return fmt.Sprintf("[%s::b]! failed, r to retry[-:-:-]", ui.ColorName(theme.FailedColor))
	}
	return ""
}

func audioLine(s *media.State, theme *ui.Theme) string {
	if s == nil || !s.Playing {
		return "♪ voice message [::d](paused)[-:-:-]"
	}
	if s.Muted {
		return "♪ voice message ▶ [::d](muted, m to unmute)[-:-:-]"
	}
	return fmt.Sprintf("♪ voice message [%s]▶ playing[-]", ui.ColorName(theme.OnlineColor))
}

// wrapText breaks s into lines of at most width display cells, preferring
// word boundaries. Explicit newlines are kept.
func wrapText(s string, width int) []string {
	if s == "" {
		return nil
	}
	if width < 1 {
		width = 1
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line, lineW := "", 0
		for _, w := range words {
			ww := uniseg.StringWidth(w)
			for ww > width {
				if line != "" {
					out = append(out, line)
					line, lineW = "", 0
				}
				head, rest := splitWidth(w, width)
				out = append(out, head)
				w, ww = rest, uniseg.StringWidth(rest)
			}
			if w == "" {
				continue
			}
			switch {
			case line == "":
				line, lineW = w, ww
			case lineW+1+ww <= width:
				line += " " + w
				lineW += 1 + ww
			default:
				out = append(out, line)
				line, lineW = w, ww
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// splitWidth cuts s after the last grapheme cluster that fits in width cells.
func splitWidth(s string, width int) (string, string) {
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		w := g.Width()
		if used+w > width && used > 0 {
			from, _ := g.Positions()
			return s[:from], s[from:]
		}
		used += w
	}
	return s, ""
}
