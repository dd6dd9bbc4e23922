// Package outbox is the optimistic send pipeline: drafts become temp entries
// immediately, are submitted in order by a single worker, and end up either
// confirmed by the server or failed and durably queued for a manual retry.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/springsconnect/springs/internal/api"
	"github.com/springsconnect/springs/internal/blob"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/cue"
	"github.com/springsconnect/springs/internal/delivery"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/store"
	"github.com/springsconnect/springs/internal/thread"
	"go.uber.org/zap"
)

var (
	ErrEmptyDraft = errors.New("draft has no text or media")
	ErrNotFailed  = errors.New("message is not in failed state")
	ErrNotFound   = errors.New("message not found")
	ErrStopped    = errors.New("sender stopped")
)

const queueSize = 256

// Transport submits a message to the server.
type Transport interface {
	SendMessage(ctx context.Context, sub api.Submission) (message.Message, error)
}

// Broadcaster fans confirmed messages out over the realtime channel.
type Broadcaster interface {
	Emit(event string, args ...any)
}

// Presence answers whether a user currently has a live session.
type Presence interface {
	IsOnline(userID string) bool
}

// Blobs keeps local copies of media for previews and retries.
type Blobs interface {
	Put(data []byte, mime string) (string, error)
	Read(url string) ([]byte, string, error)
	Remove(url string) error
}

// FailedQueue is the durable store of failed messages.
type FailedQueue interface {
	AddFailed(f store.FailedMessage) error
	RemoveFailed(id string) error
	SupersedeFailed(oldID string, f store.FailedMessage) error
	GetFailed(id string) (*store.FailedMessage, error)
}

// Conversation identifies where a draft goes.
type Conversation struct {
	ChatID     string
	FromUserID string
	ToUserID   string
}

type job struct {
	msg   message.Message
	media []byte
	// supersedes is the failed id a retry replaces.
	supersedes string
}

// Sender owns the send pipeline.
type Sender struct {
	threads   *thread.Registry
	transport Transport
	queue     FailedQueue
	blobs     Blobs
	socket    Broadcaster
	presence  Presence
	cue       cue.Player
	bus       *bus.Bus
	logger    *zap.Logger

	jobs   chan job
	cancel context.CancelFunc
	done   chan struct{}

	// stopMu guards stopped. Enqueuers hold it shared so Stop never drains
	// while a job is being handed over.
	stopMu   sync.RWMutex
	stopped  bool
	stopOnce sync.Once

	mu       sync.Mutex
	retrying map[string]string
}

// NewSender wires the pipeline. A nil cue plays nothing and a nil logger
// discards logs.
func NewSender(threads *thread.Registry, transport Transport, queue FailedQueue, blobs Blobs,
	socket Broadcaster, presence Presence, cuePlayer cue.Player, b *bus.Bus, logger *zap.Logger) *Sender {
	if cuePlayer == nil {
		cuePlayer = cue.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		threads:   threads,
		transport: transport,
		queue:     queue,
		blobs:     blobs,
		socket:    socket,
		presence:  presence,
		cue:       cuePlayer,
		bus:       b,
		logger:    logger,
		jobs:      make(chan job, queueSize),
		retrying:  make(map[string]string),
	}
}

// Start runs the submit worker until ctx is done or Stop is called.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop refuses new submissions, waits for the one on the wire to finish and
// fails every job still queued, so nothing is left in sending. The failed
// queue must stay open until Stop returns.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		s.stopMu.Lock()
		s.stopped = true
		s.stopMu.Unlock()

		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.drain()
	})
}

func (s *Sender) drain() {
	n := 0
	for {
		select {
		case j := <-s.jobs:
			s.fail(j, ErrStopped)
			n++
		default:
			if n > 0 {
				s.logger.Info("pending messages failed on shutdown", zap.Int("count", n))
			}
			return
		}
	}
}

// Send turns draft into a temp entry at the tail of the conversation and
// queues its submission. The entry is visible before any network I/O.
func (s *Sender) Send(ctx context.Context, conv Conversation, draft message.Draft) (message.Message, error) {
	if draft.Empty() {
		return message.Message{}, ErrEmptyDraft
	}
	if conv.ChatID == "" {
		return message.Message{}, errors.New("send: no chat id")
	}

	id := message.NewTempID()
	m := message.Message{
		ID:         id,
		ChatID:     conv.ChatID,
		FromUserID: conv.FromUserID,
		ToUserID:   conv.ToUserID,
		Kind:       draft.ResolvedKind(),
		Text:       strings.TrimSpace(draft.Text),
		CreatedAt:  time.Now(),
		Status:     message.StatusSending,
		TempID:     id,
	}
	if len(draft.Media) > 0 {
		url, err := s.blobs.Put(draft.Media, draft.MediaType)
		if err != nil {
			return message.Message{}, fmt.Errorf("store media: %w", err)
		}
		m.MediaURL = url
		m.MediaType = draft.MediaType
	}

	s.threads.Get(conv.ChatID).Append(m)
	s.bus.Emit(bus.MessageUpserted, bus.MessageRef{ChatID: m.ChatID, MessageID: m.ID, Status: string(m.Status)})

	if err := s.enqueue(ctx, job{msg: m, media: draft.Media}); err != nil {
		s.fail(job{msg: m}, err)
		return m, err
	}
	return m, nil
}

// Resend retries a failed message under a new temp id. Messages known only to
// the durable queue (e.g. after a restart) are put back into the thread first.
func (s *Sender) Resend(ctx context.Context, chatID, failedID string) (message.Message, error) {
	s.mu.Lock()
	if _, busy := s.retrying[failedID]; busy {
		s.mu.Unlock()
		return message.Message{}, ErrNotFailed
	}
	s.retrying[failedID] = ""
	s.mu.Unlock()

	m, err := s.resend(ctx, chatID, failedID)
	if err != nil {
		s.mu.Lock()
		delete(s.retrying, failedID)
		s.mu.Unlock()
	}
	return m, err
}

func (s *Sender) resend(ctx context.Context, chatID, failedID string) (message.Message, error) {
	th := s.threads.Get(chatID)
	m, ok := th.Get(failedID)
	if !ok {
		f, err := s.queue.GetFailed(failedID)
		if err != nil {
			return message.Message{}, fmt.Errorf("read failed queue: %w", err)
		}
		if f == nil || f.Message.ChatID != chatID {
			return message.Message{}, ErrNotFound
		}
		m = f.Message
		th.Append(m)
	}
	if m.Status != message.StatusFailed {
		return message.Message{}, ErrNotFailed
	}

	var media []byte
	if blob.IsBlob(m.MediaURL) {
		data, _, err := s.blobs.Read(m.MediaURL)
		if err != nil {
			return message.Message{}, fmt.Errorf("media for retry: %w", err)
		}
		media = data
	}

	newID := message.NewTempID()
	retry, ok := th.Rekey(failedID, newID, message.StatusSending)
	if !ok {
		return message.Message{}, ErrNotFound
	}
	s.mu.Lock()
	s.retrying[failedID] = newID
	s.mu.Unlock()

	s.logger.Info("retrying message", zap.String("failed_id", failedID), zap.String("temp_id", newID))
	s.bus.Emit(bus.MessageUpserted, bus.MessageRef{
		ChatID: chatID, MessageID: newID, PreviousID: failedID, Status: string(retry.Status),
	})

	j := job{msg: retry, media: media, supersedes: failedID}
	if err := s.enqueue(ctx, j); err != nil {
		s.fail(j, err)
		return retry, err
	}
	return retry, nil
}

// Retrying reports whether failedID has a retry in flight. Such snapshots are
// still in the durable queue but must not be shown again.
func (s *Sender) Retrying(failedID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retrying[failedID]
	return ok
}

func (s *Sender) enqueue(ctx context.Context, j job) error {
	s.stopMu.RLock()
	defer s.stopMu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.jobs <- j:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue submission: %w", ctx.Err())
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	// Submissions are not cancellable once started.
	submitCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		select {
		case j := <-s.jobs:
			s.submit(submitCtx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) submit(ctx context.Context, j job) {
	m := j.msg
	server, err := s.transport.SendMessage(ctx, api.Submission{
		ChatID:     m.ChatID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		Text:       m.Text,
		TempID:     m.ID,
		Media:      j.media,
		MediaType:  m.MediaType,
	})
	if err != nil {
		s.fail(j, err)
		return
	}

	if server.ChatID == "" {
		server.ChatID = m.ChatID
	}
	server.TempID = m.ID
	server.Status = delivery.ForPresence(s.presence.IsOnline(m.ToUserID))
	stored := s.threads.Get(m.ChatID).Replace(m.ID, server)

	if j.supersedes != "" {
		if err := s.queue.RemoveFailed(j.supersedes); err != nil {
			s.logger.Error("failed to drop resolved snapshot", zap.Error(err), zap.String("id", j.supersedes))
		}
		s.doneRetrying(j.supersedes)
	}
	if blob.IsBlob(m.MediaURL) && stored.MediaURL != m.MediaURL {
		if err := s.blobs.Remove(m.MediaURL); err != nil {
			s.logger.Debug("failed to remove local media", zap.Error(err))
		}
	}

	s.socket.Emit("sendMessage", api.FromMessage(stored))
	s.cue.Play()

	s.logger.Info("message sent",
		zap.String("chat_id", m.ChatID),
		zap.String("temp_id", m.ID),
		zap.String("id", stored.ID),
		zap.String("status", string(stored.Status)),
	)
	s.bus.Emit(bus.MessageConfirmed, bus.MessageRef{
		ChatID: m.ChatID, MessageID: stored.ID, PreviousID: m.ID, Status: string(stored.Status),
	})
}

func (s *Sender) fail(j job, cause error) {
	m := j.msg
	th := s.threads.Get(m.ChatID)
	if _, ok := th.Get(m.ID); !ok {
		// A receiveMessage echo already replaced the temp entry, so the server
		// has the message and there is nothing to retry.
		s.logger.Info("submit error after echo, not queued",
			zap.Error(cause), zap.String("chat_id", m.ChatID), zap.String("temp_id", m.ID))
		if j.supersedes != "" {
			if err := s.queue.RemoveFailed(j.supersedes); err != nil {
				s.logger.Error("failed to drop resolved snapshot", zap.Error(err), zap.String("id", j.supersedes))
			}
			s.doneRetrying(j.supersedes)
		}
		return
	}
	if failed, ok := th.MarkFailed(m.ID); ok {
		m = failed
	}
	m.Status = message.StatusFailed

	fields := []zap.Field{zap.Error(cause), zap.String("chat_id", m.ChatID), zap.String("temp_id", m.ID)}
	if api.IsServerError(cause) {
		s.logger.Warn("server rejected message", fields...)
	} else {
		s.logger.Warn("message submit failed", fields...)
	}

	snapshot := store.FailedMessage{Message: m, Error: cause.Error(), FailedAt: time.Now()}
	var err error
	if j.supersedes != "" {
		err = s.queue.SupersedeFailed(j.supersedes, snapshot)
		s.doneRetrying(j.supersedes)
	} else {
		err = s.queue.AddFailed(snapshot)
	}
	if err != nil {
		s.logger.Error("failed to persist failed message", zap.Error(err), zap.String("temp_id", m.ID))
	}

	s.bus.Emit(bus.MessageFailed, bus.MessageRef{
		ChatID: m.ChatID, MessageID: m.ID, PreviousID: j.supersedes, Status: string(m.Status), Error: cause.Error(),
	})
}

func (s *Sender) doneRetrying(failedID string) {
	s.mu.Lock()
	delete(s.retrying, failedID)
	s.mu.Unlock()
}
