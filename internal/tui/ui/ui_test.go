package ui

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rivo/tview"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/status"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFlashKeepsMoreUrgentNotice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := NewFlashModel(clock)

	f.Err(errors.New("daemon unreachable"))
	f.Info("Reconnected")
	if m := f.GetMessage(); m == nil || m.Level != FlashErr {
		t.Fatalf("message = %+v, want the error to stay", m)
	}

	clock.Advance(13 * time.Second)
	if m := f.GetMessage(); m != nil {
		t.Fatalf("message = %+v, want expired", m)
	}
	f.Info("Reconnected")
	if m := f.GetMessage(); m == nil || m.Text != "Reconnected" {
		t.Fatalf("message = %+v after expiry", m)
	}
}

func TestFlashFromEvent(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		payload any
		shown   bool
		level   FlashLevel
		text    string
	}{
		{"failed send", bus.MessageFailed, bus.MessageRef{ChatID: "c1", MessageID: "temp_1", Error: "timeout"}, true, FlashWarn, "timeout"},
		{"recording started", bus.RecordingStarted, bus.RecordingState{Limit: time.Minute}, true, FlashInfo, "Recording"},
		{"recording hit limit", bus.RecordingStopped, bus.RecordingState{Elapsed: time.Minute, Limit: time.Minute}, true, FlashWarn, "1m0s limit"},
		{"recording failed", bus.RecordingStopped, bus.RecordingState{Error: "no microphone"}, true, FlashErr, "no microphone"},
		{"recording stopped by user", bus.RecordingStopped, bus.RecordingState{Elapsed: time.Second, Limit: time.Minute}, false, 0, ""},
		{"link lost", bus.ConnectionChanged, status.StatusChange{From: status.Ready, To: status.Reconnecting}, true, FlashWarn, "reconnecting"},
		{"link back", bus.ConnectionChanged, status.StatusChange{From: status.Reconnecting, To: status.Ready}, true, FlashInfo, "Reconnected"},
		{"first connect", bus.ConnectionChanged, status.StatusChange{From: status.Connecting, To: status.Ready}, false, 0, ""},
		{"typing", bus.TypingChanged, bus.TypingChange{ChatID: "c1"}, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlashModel(clockwork.NewFakeClock())
			shown := f.FromEvent(tt.kind, mustJSON(t, tt.payload))
			if shown != tt.shown {
				t.Fatalf("FromEvent = %v, want %v", shown, tt.shown)
			}
			m := f.GetMessage()
			if !tt.shown {
				if m != nil {
					t.Fatalf("unexpected notice %+v", m)
				}
				return
			}
			if m == nil || m.Level != tt.level || !strings.Contains(m.Text, tt.text) {
				t.Fatalf("notice = %+v, want level %d containing %q", m, tt.level, tt.text)
			}
		})
	}
}

func TestPagesNavigation(t *testing.T) {
	p := NewPages(PageConversations)
	var trails [][]Crumb
	p.SetOnChange(func(trail []Crumb) { trails = append(trails, trail) })
	for _, name := range []string{PageConversations, PageThread, PageDetails, PageHelp} {
		p.Add(name, strings.ToUpper(name[:1])+name[1:], tview.NewBox())
	}
	if p.Current() != PageConversations || p.Depth() != 1 {
		t.Fatalf("root not shown: current %q depth %d", p.Current(), p.Depth())
	}

	p.SetLabel(PageThread, "Ada")
	p.Reset(PageThread)
	p.Open(PageDetails)
	p.Open(PageHelp)
	if p.Depth() != 4 {
		t.Fatalf("depth = %d, want 4", p.Depth())
	}

	// Opening a page already on the stack returns to it.
	if !p.Open(PageThread) || p.Depth() != 2 || p.Contains(PageHelp) {
		t.Fatalf("reopen thread: depth %d current %q", p.Depth(), p.Current())
	}
	if p.Open(PageThread) {
		t.Fatal("opening the current page reported a change")
	}

	want := []Crumb{{PageConversations, "Conversations"}, {PageThread, "Ada"}}
	if got := trails[len(trails)-1]; !reflect.DeepEqual(got, want) {
		t.Fatalf("trail = %+v, want %+v", got, want)
	}

	if top, ok := p.Back(); !ok || top != PageThread {
		t.Fatalf("Back = %q, %v", top, ok)
	}
	if _, ok := p.Back(); ok {
		t.Fatal("Back popped the root page")
	}
	if p.Current() != PageConversations {
		t.Fatalf("current = %q", p.Current())
	}
}

func TestMenuListsAlertsFirst(t *testing.T) {
	m := NewMenu(DefaultTheme())
	m.Update([]MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "r", Description: "Retry", Alert: true},
		{Key: "d", Description: "Details"},
	})
	hints := m.Hints()
	if len(hints) != 3 || hints[0].Key != "r" || hints[1].Key != "i" {
		t.Fatalf("hints = %+v", hints)
	}
	if text := m.GetText(false); !strings.Contains(text, ColorName(DefaultTheme().FailedColor)) {
		t.Fatalf("alert hint not highlighted: %q", text)
	}
}

func TestCrumbsCutLongLabels(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	out := c.format([]Crumb{
		{Page: PageConversations, Label: "Conversations"},
		{Page: PageThread, Label: strings.Repeat("a", 40)},
	})
	if !strings.Contains(out, strings.Repeat("a", 23)+"…") || strings.Contains(out, strings.Repeat("a", 24)) {
		t.Fatalf("crumbs = %q", out)
	}
	if strings.Count(out, " > ") != 1 {
		t.Fatalf("crumbs = %q, want one separator", out)
	}
}

func TestLogoFollowsState(t *testing.T) {
	theme := DefaultTheme()
	l := NewLogo(theme)
	l.SetState(string(status.Error))
	text := l.GetText(false)
	if !strings.Contains(text, ColorName(theme.FailedColor)) || !strings.Contains(text, "springs ERROR") {
		t.Fatalf("logo = %q", text)
	}
	l.SetState(string(status.Ready))
	if text := l.GetText(false); !strings.Contains(text, "springs connect") {
		t.Fatalf("logo = %q", text)
	}
}

func TestPromptCompletesOutsideFilter(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.SetCompleter(func(mode PromptMode, text string) []string {
		return []string{"open"}
	})
	p.Activate(PromptCommand)
	if got := p.suggest("op"); len(got) != 1 {
		t.Fatalf("command suggestions = %v", got)
	}
	p.Activate(PromptFilter)
	if got := p.suggest("op"); got != nil {
		t.Fatalf("filter suggestions = %v", got)
	}
}
