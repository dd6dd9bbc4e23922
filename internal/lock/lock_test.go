package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSecondDaemonSeesHolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles", "work")

	held, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer func() { _ = held.Release() }()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid=") || !strings.Contains(string(data), "\ntime=") {
		t.Fatalf("lock file = %q", data)
	}

	_, err = Acquire(dir)
	var heldErr *HeldError
	if !errors.As(err, &heldErr) {
		t.Fatalf("second Acquire() error = %v, want *HeldError", err)
	}
	if heldErr.PID != os.Getpid() || heldErr.Since.IsZero() || heldErr.Path != filepath.Join(dir, FileName) {
		t.Fatalf("HeldError = %+v", heldErr)
	}
	if !strings.Contains(heldErr.Error(), "pid "+strconv.Itoa(os.Getpid())) {
		t.Fatalf("HeldError message = %q", heldErr.Error())
	}
}

func TestReleasedProfileCanBeReopened(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Fatalf("lock file left after release: %v", err)
	}

	second, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatal(err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}

	var none *Lock
	if err := none.Release(); err != nil {
		t.Fatalf("nil Release() error = %v", err)
	}
}

func TestParseOwner(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		content string
		want    Owner
	}{
		{"pid=4242\ntime=2026-01-02T03:04:05Z\n", Owner{PID: 4242, Since: since}},
		{"time=2026-01-02T03:04:05Z\npid=7\n", Owner{PID: 7, Since: since}},
		{"pid=abc\ntime=yesterday\n", Owner{}},
		{"", Owner{}},
	}
	for _, tt := range tests {
		got := parseOwner(tt.content)
		if got.PID != tt.want.PID || !got.Since.Equal(tt.want.Since) {
			t.Errorf("parseOwner(%q) = %+v, want %+v", tt.content, got, tt.want)
		}
	}
}
