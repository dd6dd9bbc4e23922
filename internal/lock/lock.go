// Package lock makes sure one springsd serves a profile at a time.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file inside the profile directory.
const FileName = "LOCK"

// Owner is what the holding daemon records in the lock file.
type Owner struct {
	PID   int
	Since time.Time
}

// HeldError means another springsd already serves the profile. PID is 0 when
// the lock file could not be read.
type HeldError struct {
	Owner
	Path string
}

func (e *HeldError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("profile already in use (%s)", e.Path)
	}
	if e.Since.IsZero() {
		return fmt.Sprintf("profile already served by springsd pid %d (%s)", e.PID, e.Path)
	}
	return fmt.Sprintf("profile already served by springsd pid %d since %s (%s)",
		e.PID, e.Since.Local().Format(time.DateTime), e.Path)
}

// Lock is a held profile lock. The flock is dropped by the kernel if the
// process dies, so a stale file never blocks the next daemon.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the profile lock, creating profileDir if needed.
func Acquire(profileDir string) (*Lock, error) {
	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	path := filepath.Join(profileDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(path)
		_ = f.Close()
		return nil, &HeldError{Owner: parseOwner(string(data)), Path: path}
	}

	if err := writeOwner(f, Owner{PID: os.Getpid(), Since: time.Now()}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Release drops the lock and removes the file. It is safe on nil and when
// called twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeOwner(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\ntime=%s\n", o.PID, o.Since.UTC().Format(time.RFC3339))
	return err
}

func parseOwner(content string) Owner {
	var o Owner
	for _, line := range strings.Split(content, "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(val)
		case "time":
			o.Since, _ = time.Parse(time.RFC3339, val)
		}
	}
	return o
}
