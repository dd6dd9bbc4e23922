package message

import (
	"testing"
	"time"
)

func TestNewTempIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTempID()
		if !IsTemp(id) {
			t.Fatalf("NewTempID() = %q, want temp_ prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate temp id %q", id)
		}
		seen[id] = true
	}
}

func TestDraftEmpty(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		want  bool
	}{
		{"no text no media", Draft{}, true},
		{"whitespace only", Draft{Text: "  \n"}, true},
		{"text", Draft{Text: "Hello"}, false},
		{"media only", Draft{Media: []byte{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.draft.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDraftResolvedKind(t *testing.T) {
	tests := []struct {
		draft Draft
		want  Kind
	}{
		{Draft{Text: "hi"}, KindText},
		{Draft{Media: []byte{1}, MediaType: "audio/webm"}, KindAudio},
		{Draft{Media: []byte{1}, MediaType: "image/png"}, KindImage},
		{Draft{Media: []byte{1}, MediaType: "audio/mp4", Kind: KindAudio}, KindAudio},
	}
	for _, tt := range tests {
		if got := tt.draft.ResolvedKind(); got != tt.want {
			t.Errorf("ResolvedKind(%+v) = %s, want %s", tt.draft.MediaType, got, tt.want)
		}
	}
}

func TestSortByCreated(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "c", CreatedAt: base.Add(2 * time.Second)},
		{ID: "b", CreatedAt: base},
		{ID: "a", CreatedAt: base},
	}
	SortByCreated(msgs)
	got := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
