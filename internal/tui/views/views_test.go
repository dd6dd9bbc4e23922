package views

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/springsconnect/springs/internal/media"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/rpc"
	"github.com/springsconnect/springs/internal/tui/ui"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  []string
	}{
		{"", 10, nil},
		{"the quick brown fox", 9, []string{"the quick", "brown fox"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"a\n\nb", 10, []string{"a", "", "b"}},
		{"hi there", 100, []string{"hi there"}},
	}
	for _, tt := range tests {
		if got := wrapText(tt.in, tt.width); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestStatusGlyph(t *testing.T) {
	theme := ui.DefaultTheme()
	tests := []struct {
		status message.Status
		want   string
	}{
		{message.StatusSending, "…"},
		{message.StatusSent, "✓"},
		{message.StatusDelivered, "✓✓"},
		{message.StatusSeen, "✓✓"},
		{message.StatusFailed, "r to retry"},
	}
	for _, tt := range tests {
		if got := statusGlyph(tt.status, theme); !strings.Contains(got, tt.want) {
			t.Errorf("statusGlyph(%s) = %q, want it to contain %q", tt.status, got, tt.want)
		}
	}
	if statusGlyph(message.StatusSeen, theme) == statusGlyph(message.StatusDelivered, theme) {
		t.Error("seen should be colored differently from delivered")
	}
}

func TestRenderBubbleOnlyOutgoingShowsStatus(t *testing.T) {
	theme := ui.DefaultTheme()
	in := message.Message{ID: "m1", FromUserID: "peer", Text: "hello", Status: message.StatusDelivered, CreatedAt: time.Now()}
	out := in
	out.FromUserID = "me"

	if lines := renderBubble(in, "me", "Ada", 40, nil, theme); strings.Contains(lines[0], "✓") || !strings.Contains(lines[0], "Ada") {
		t.Errorf("incoming header = %q", lines[0])
	}
	if lines := renderBubble(out, "me", "Ada", 40, nil, theme); !strings.Contains(lines[0], "✓✓") || !strings.Contains(lines[0], "You") {
		t.Errorf("outgoing header = %q", lines[0])
	}
}

func threadFixture(t *testing.T) (*MessageThread, *media.Coordinator, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(60, 30)

	coord := media.NewCoordinator()
	mt := NewMessageThread(ui.DefaultTheme(), coord)
	mt.SetRect(0, 0, 60, 30)
	mt.SetMe("me")
	mt.SetPeer(rpc.PeerInfo{ID: "peer", Name: "Ada"})
	return mt, coord, screen
}

func draw(mt *MessageThread, screen tcell.Screen) {
	mt.Draw(screen)
	mt.ReportVisibility()
}

func TestThreadReportsVisibleBubbles(t *testing.T) {
	mt, coord, screen := threadFixture(t)
	var seen []string
	mt.SetOnSeen(func(id string) { seen = append(seen, id) })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mt.Update([]message.Message{
		{ID: "srv-1", FromUserID: "peer", Kind: message.KindText, Text: "hello", Status: message.StatusDelivered, CreatedAt: base},
		{ID: "srv-2", FromUserID: "me", Kind: message.KindText, Text: "hi", Status: message.StatusSeen, CreatedAt: base.Add(time.Minute)},
		{ID: "srv-3", FromUserID: "peer", Kind: message.KindAudio, MediaURL: "https://cdn/a.webm", Status: message.StatusSent, CreatedAt: base.Add(2 * time.Minute)},
		{ID: message.TempPrefix + "x", FromUserID: "me", Kind: message.KindText, Text: "pending", Status: message.StatusSending, CreatedAt: base.Add(3 * time.Minute)},
	})

	// The first pass picks up the real width and relayouts.
	draw(mt, screen)
	draw(mt, screen)

	if want := []string{"srv-1", "srv-3"}; !reflect.DeepEqual(seen, want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	if coord.Holder() != "srv-3" {
		t.Fatalf("holder = %q, want srv-3", coord.Holder())
	}
	p := mt.Player("srv-3")
	if !p.Playing() || !p.Muted() {
		t.Fatalf("autoplay state = %+v, want playing muted", p.State())
	}

	draw(mt, screen)
	if len(seen) != 2 {
		t.Fatalf("seen fired again: %v", seen)
	}
}

func TestThreadSelectionAndUnmute(t *testing.T) {
	mt, coord, screen := threadFixture(t)
	mt.Update([]message.Message{
		{ID: "srv-1", FromUserID: "peer", Kind: message.KindAudio, Status: message.StatusSeen},
		{ID: "srv-2", FromUserID: "me", Kind: message.KindText, Text: "boom", Status: message.StatusFailed},
	})
	draw(mt, screen)

	if sel := mt.SelectedMessage(); sel == nil || sel.ID != "srv-2" {
		t.Fatalf("selected = %+v, want the newest message", sel)
	}
	if mt.Unmute() {
		t.Fatal("unmute on a text message should be refused")
	}

	mt.SelectPrev()
	if !mt.Unmute() {
		t.Fatal("unmute on the voice message failed")
	}
	if !coord.UserHasUnmutedOnce() || mt.Player("srv-1").Muted() {
		t.Fatal("unmute did not take effect")
	}

	mt.Stop()
	if coord.Holder() != "" {
		t.Fatalf("holder after stop = %q", coord.Holder())
	}
	if mt.SelectedMessage() != nil {
		t.Fatal("selection survived stop")
	}
}

func TestThreadKeepsSelectionAcrossConfirm(t *testing.T) {
	mt, _, _ := threadFixture(t)
	temp := message.Message{ID: message.TempPrefix + "1", TempID: message.TempPrefix + "1", FromUserID: "me", Text: "a", Status: message.StatusSending}
	older := message.Message{ID: "srv-0", FromUserID: "peer", Text: "b", Status: message.StatusSeen}
	mt.Update([]message.Message{older, temp})
	mt.SelectPrev()
	mt.SelectNext()

	confirmed := temp
	confirmed.ID = "srv-1"
	confirmed.Status = message.StatusSent
	mt.Update([]message.Message{older, confirmed})

	if sel := mt.SelectedMessage(); sel == nil || sel.ID != "srv-1" {
		t.Fatalf("selected = %+v, want the confirmed message", sel)
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update([]rpc.ConversationInfo{
		{ChatID: "c1", PeerID: "u1", PeerName: "Ada Lovelace", Preview: "see you"},
		{ChatID: "c2", PeerID: "u2", PeerName: "Grace", Preview: "compilers"},
		{ChatID: "c3", PeerID: "u3", Preview: "hello ada"},
	})

	if got := cl.PeerByIndex(2); got != "u2" {
		t.Fatalf("PeerByIndex(2) = %q", got)
	}
	cl.SetFilter("ADA")
	if got := cl.PeerByIndex(2); got != "u3" {
		t.Fatalf("filtered PeerByIndex(2) = %q, want u3", got)
	}
	if got := cl.PeerByIndex(3); got != "" {
		t.Fatalf("PeerByIndex past end = %q", got)
	}
	cl.ClearFilter()

	if got := cl.FindPeer("grace"); got != "u2" {
		t.Fatalf("FindPeer(grace) = %q", got)
	}
	if got := cl.FindPeer("love"); got != "u1" {
		t.Fatalf("FindPeer(love) = %q", got)
	}
	if got := cl.FindPeer("nobody"); got != "" {
		t.Fatalf("FindPeer(nobody) = %q", got)
	}

	if got := cl.CompletePeers("u"); len(got) != 3 || got[2] != "u3" {
		t.Fatalf("CompletePeers(u) = %v", got)
	}
	if got := cl.CompletePeers("gr"); len(got) != 1 || got[0] != "Grace" {
		t.Fatalf("CompletePeers(gr) = %v", got)
	}
}

func TestPresenceText(t *testing.T) {
	theme := ui.DefaultTheme()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		peer rpc.PeerInfo
		want string
	}{
		{rpc.PeerInfo{ID: "u1", Name: "Ada", Typing: true, Online: true}, "typing"},
		{rpc.PeerInfo{ID: "u1", Name: "Ada", Online: true}, "online"},
		{rpc.PeerInfo{ID: "u1", LastActiveAtMs: now.Add(-5 * time.Minute).UnixMilli()}, "5m ago"},
		{rpc.PeerInfo{ID: "u1", LastActiveAtMs: now.Add(-3 * time.Hour).UnixMilli()}, "3h ago"},
		{rpc.PeerInfo{ID: "u1"}, "offline"},
	}
	for _, tt := range tests {
		if got := presenceText(tt.peer, now, theme); !strings.Contains(got, tt.want) {
			t.Errorf("presenceText(%+v) = %q, want %q", tt.peer, got, tt.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(65 * time.Second); got != "1:05" {
		t.Fatalf("formatElapsed = %q", got)
	}
	if got := formatElapsed(-time.Second); got != "0:00" {
		t.Fatalf("formatElapsed(negative) = %q", got)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"👍\U0001F3FB ok\u200d", "👍 ok"},
		{"line one\nline two", "line one\nline two"},
		{"tab\there\x1b[31m", "tab here[31m"},
		{"bell\a\r", "bell"},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanLine(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"see you\n  tomorrow", 0, "see you tomorrow"},
		{"Ada Lovelace", 12, "Ada Lovelace"},
		{"Ada Lovelace", 6, "Ada L…"},
		{"👍👍👍", 5, "👍👍…"},
	}
	for _, tt := range tests {
		if got := cleanLine(tt.in, tt.max); got != tt.want {
			t.Errorf("cleanLine(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
