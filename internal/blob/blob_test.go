package blob

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestPutRead(t *testing.T) {
	s := testStore(t)

	url, err := s.Put([]byte("RIFF...."), "audio/wav")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !IsBlob(url) || !strings.HasSuffix(url, ".wav") {
		t.Errorf("url = %q", url)
	}

	data, mime, err := s.Read(url)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, []byte("RIFF....")) {
		t.Errorf("data = %q", data)
	}
	if mime != "audio/wav" {
		t.Errorf("mime = %q, want audio/wav", mime)
	}
}

func TestPutUniqueNames(t *testing.T) {
	s := testStore(t)
	a, _ := s.Put([]byte("a"), "image/png")
	b, _ := s.Put([]byte("a"), "image/png")
	if a == b {
		t.Errorf("two puts returned the same url %q", a)
	}
}

func TestRemove(t *testing.T) {
	s := testStore(t)
	url, _ := s.Put([]byte("x"), "audio/webm")
	path, _ := s.Path(url)

	if err := s.Remove(url); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := s.Remove(url); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestPathRejectsForeignURLs(t *testing.T) {
	s := testStore(t)
	for _, url := range []string{
		"https://cdn.example.com/a.png",
		"blob:",
		"blob:../escape.wav",
		"blob:sub/dir.wav",
	} {
		if _, err := s.Path(url); !errors.Is(err, ErrNotBlob) {
			t.Errorf("Path(%q) err = %v, want ErrNotBlob", url, err)
		}
	}
}

func TestExtForMIME(t *testing.T) {
	tests := []struct {
		mime string
		ext  string
	}{
		{"audio/webm;codecs=opus", ".webm"},
		{"audio/mp4", ".m4a"},
		{"audio/mp3", ".mp3"},
		{"audio/mpeg", ".mp3"},
		{"AUDIO/WAV", ".wav"},
		{"image/jpeg", ".jpg"},
		{"", ".bin"},
		{"text/plain", ".bin"},
	}
	for _, tt := range tests {
		if got := ExtForMIME(tt.mime); got != tt.ext {
			t.Errorf("ExtForMIME(%q) = %q, want %q", tt.mime, got, tt.ext)
		}
	}
}
