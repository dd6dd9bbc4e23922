// Package audio captures voice notes from a microphone device with a hard
// duration limit.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/springsconnect/springs/internal/bus"
	"go.uber.org/zap"
)

const (
	// DefaultLimit is the hard cap on a single recording.
	DefaultLimit = 60 * time.Second
	// TickInterval is how often elapsed time is published while recording.
	TickInterval = 500 * time.Millisecond
)

var (
	ErrNotRecording   = errors.New("not recording")
	ErrEmptyRecording = errors.New("recording is empty")
	ErrDiscarded      = errors.New("recording discarded")
)

// BlobStore persists finished recordings.
type BlobStore interface {
	Put(data []byte, mime string) (string, error)
}

// Recording is a finished capture.
type Recording struct {
	URL      string
	MIME     string
	Data     []byte
	Duration time.Duration
}

// Result is delivered on Done once per capture.
type Result struct {
	Recording Recording
	Err       error
}

// Session drives one microphone. At most one capture is active at a time.
type Session struct {
	device   Device
	blobs    BlobStore
	bus      *bus.Bus
	clock    clockwork.Clock
	limit    time.Duration
	platform string
	logger   *zap.Logger

	mu       sync.Mutex
	cur      *capture
	last     time.Duration
	lastDone chan Result
}

type capture struct {
	stream  Stream
	mime    string
	started time.Time

	mu  sync.Mutex
	buf bytes.Buffer

	quit     chan struct{}
	readDone chan struct{}
	done     chan Result
}

// NewSession creates an idle session. A nil clock uses the real clock and a
// non-positive limit uses DefaultLimit.
func NewSession(dev Device, blobs BlobStore, b *bus.Bus, clock clockwork.Clock, limit time.Duration, logger *zap.Logger) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		device:   dev,
		blobs:    blobs,
		bus:      b,
		clock:    clock,
		limit:    limit,
		platform: runtime.GOOS,
		logger:   logger,
	}
}

// SetPlatform overrides the platform used for format selection.
func (s *Session) SetPlatform(platform string) {
	s.platform = platform
}

// Limit returns the hard duration cap.
func (s *Session) Limit() time.Duration { return s.limit }

// Start opens the microphone and begins buffering. A capture that is still
// holding the microphone is discarded first.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	prev := s.cur
	s.cur = nil
	s.mu.Unlock()
	if prev != nil {
		s.logger.Warn("discarding unfinished recording", zap.String("mime", prev.mime))
		close(prev.quit)
		prev.release(s.logger)
		prev.done <- Result{Err: ErrDiscarded}
	}

	mime := SelectMIME(s.platform, s.device)
	stream, err := s.device.Open(ctx, mime)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	c := &capture{
		stream:   stream,
		mime:     mime,
		started:  s.clock.Now(),
		quit:     make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan Result, 1),
	}
	ticker := s.clock.NewTicker(TickInterval)

	s.mu.Lock()
	s.cur = c
	s.last = 0
	s.lastDone = c.done
	s.mu.Unlock()

	go c.read(s.logger)
	go s.tick(c, ticker)

	s.logger.Info("recording started", zap.String("mime", mime), zap.Duration("limit", s.limit))
	s.bus.Emit(bus.RecordingStarted, bus.RecordingState{Limit: s.limit, MIME: mime})
	return nil
}

// Stop ends the active capture, releases the microphone and stores the
// buffered audio as one blob.
func (s *Session) Stop() (Recording, error) {
	s.mu.Lock()
	c := s.cur
	s.cur = nil
	s.mu.Unlock()
	if c == nil {
		return Recording{}, ErrNotRecording
	}
	return s.finish(c)
}

// Active reports whether a capture is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Elapsed returns the running capture's duration, or the duration of the
// last finished one.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		return min(s.clock.Since(s.cur.started), s.limit)
	}
	return s.last
}

// Done returns the channel receiving the result of the current (or last)
// capture exactly once, whether it was stopped by the caller or by the limit.
// It is nil before the first Start.
func (s *Session) Done() <-chan Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDone
}

func (s *Session) tick(c *capture, ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-c.quit:
			return
		case <-ticker.Chan():
			elapsed := min(s.clock.Since(c.started), s.limit)
			if elapsed < s.limit {
				s.bus.Emit(bus.RecordingTick, bus.RecordingState{Elapsed: elapsed, Limit: s.limit, MIME: c.mime})
				continue
			}
			s.mu.Lock()
			owned := s.cur == c
			if owned {
				s.cur = nil
			}
			s.mu.Unlock()
			if owned {
				s.logger.Info("recording limit reached", zap.Duration("limit", s.limit))
				_, _ = s.finish(c)
			}
			return
		}
	}
}

func (s *Session) finish(c *capture) (Recording, error) {
	elapsed := min(s.clock.Since(c.started), s.limit)
	s.mu.Lock()
	s.last = elapsed
	s.mu.Unlock()

	close(c.quit)
	c.release(s.logger)

	rec := Recording{MIME: c.mime, Data: c.bytes(), Duration: elapsed}
	var err error
	switch {
	case len(rec.Data) == 0:
		err = ErrEmptyRecording
	case s.blobs != nil:
		rec.URL, err = s.blobs.Put(rec.Data, rec.MIME)
	}

	state := bus.RecordingState{Elapsed: elapsed, Limit: s.limit, MIME: rec.MIME, URL: rec.URL}
	if err != nil {
		state.Error = err.Error()
		s.logger.Warn("recording failed", zap.Error(err))
	} else {
		s.logger.Info("recording stopped", zap.Duration("duration", elapsed), zap.Int("bytes", len(rec.Data)))
	}
	c.done <- Result{Recording: rec, Err: err}
	s.bus.Emit(bus.RecordingStopped, state)
	return rec, err
}

func (c *capture) read(logger *zap.Logger) {
	defer close(c.readDone)
	chunk := make([]byte, 32*1024)
	for {
		n, err := c.stream.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.buf.Write(chunk[:n])
			c.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.Debug("microphone read ended", zap.Error(err))
			}
			return
		}
	}
}

// release closes the stream and waits for the reader to drain it.
func (c *capture) release(logger *zap.Logger) {
	if err := c.stream.Close(); err != nil {
		logger.Debug("release microphone", zap.Error(err))
	}
	<-c.readDone
}

func (c *capture) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf.Bytes())
}
