// Package blob stores media payloads (recordings, attachments) on disk and
// hands out opaque blob URLs used for local previews and retries.
package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Scheme prefixes every URL issued by a Store.
const Scheme = "blob:"

// ErrNotBlob is returned for URLs that were not issued by a Store.
var ErrNotBlob = errors.New("not a blob url")

// Store is a directory of media files named <uuid><ext>.
type Store struct {
	dir string
}

// Open returns a store rooted at dir, creating it when missing.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Put writes data and returns its blob URL.
func (s *Store) Put(data []byte, mime string) (string, error) {
	name := uuid.NewString() + ExtForMIME(mime)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return Scheme + name, nil
}

// Read returns the bytes behind url and the MIME type implied by its name.
func (s *Store) Read(url string) ([]byte, string, error) {
	path, err := s.Path(url)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read blob: %w", err)
	}
	return data, MIMEForName(path), nil
}

// Path resolves url to a file inside the store.
func (s *Store) Path(url string) (string, error) {
	name, ok := strings.CutPrefix(url, Scheme)
	if !ok || name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrNotBlob, url)
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes the file behind url. Missing files are not an error.
func (s *Store) Remove(url string) error {
	path, err := s.Path(url)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// IsBlob reports whether url uses the blob scheme.
func IsBlob(url string) bool {
	return strings.HasPrefix(url, Scheme)
}

// ExtForMIME maps a MIME type (parameters ignored) to a file extension.
func ExtForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	base := strings.TrimSpace(strings.Split(mime, ";")[0])
	switch base {
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// MIMEForName is the inverse of ExtForMIME.
func MIMEForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
