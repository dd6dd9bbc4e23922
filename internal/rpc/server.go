package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/springsconnect/springs/internal/api"
	"github.com/springsconnect/springs/internal/audio"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/chat"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/outbox"
	"github.com/springsconnect/springs/internal/status"
	"github.com/springsconnect/springs/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Chat is the conversation core served over the control plane.
type Chat interface {
	UserID() string
	Open(ctx context.Context, peerID string) (chat.View, error)
	Peer(chatID string) (chat.PeerState, error)
	Send(ctx context.Context, chatID string, draft message.Draft) (message.Message, error)
	Resend(ctx context.Context, chatID, messageID string) (message.Message, error)
	Messages(chatID string) ([]message.Message, error)
	Failed(chatID string) ([]store.FailedMessage, error)
	Conversations(limit int) ([]store.Conversation, error)
	MarkRead(chatID, messageID string) bool
	Typing(chatID string)
}

// Recorder is the microphone.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (audio.Recording, error)
	Active() bool
	Done() <-chan audio.Result
	Limit() time.Duration
}

// Blobs resolves recorded media.
type Blobs interface {
	Read(url string) ([]byte, string, error)
}

// Counter reports store statistics for Status.
type Counter interface {
	CountFailed() (int64, error)
	ConversationCount() (int64, error)
}

// Connection reports the realtime link state.
type Connection interface {
	Connected() bool
}

// Server implements ChatServer on top of the chat core.
type Server struct {
	profile   string
	startedAt time.Time
	chat      Chat
	recorder  Recorder
	blobs     Blobs
	counts    Counter
	conn      Connection
	machine   *status.Machine
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewServer creates the control plane service. recorder, counts and conn may be nil.
func NewServer(profile string, c Chat, recorder Recorder, blobs Blobs, counts Counter, conn Connection,
	machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		profile:   profile,
		startedAt: time.Now(),
		chat:      c,
		recorder:  recorder,
		blobs:     blobs,
		counts:    counts,
		conn:      conn,
		machine:   machine,
		bus:       b,
		logger:    logger,
	}
}

func (s *Server) Status(_ context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:  s.profile,
		UserID:   s.chat.UserID(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.machine != nil {
		resp.State = string(s.machine.Current())
	}
	if s.conn != nil {
		resp.Connected = s.conn.Connected()
	}
	if s.recorder != nil {
		resp.Recording = s.recorder.Active()
	}

	// Populate counts from store.
	if s.counts != nil {
		if n, err := s.counts.CountFailed(); err == nil {
			resp.FailedCount = n
		}
		if n, err := s.counts.ConversationCount(); err == nil {
			resp.ConversationCount = n
		}
	}
	return resp, nil
}

func (s *Server) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	if req.PeerID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer_id is required")
	}
	view, err := s.chat.Open(ctx, req.PeerID)
	if err != nil {
		return nil, toStatus("open", err)
	}
	peer := peerInfo(chat.PeerState{User: view.Peer, Online: view.Online})
	return &OpenResponse{ChatID: view.ChatID, Peer: peer, Messages: nonNil(view.Messages)}, nil
}

func (s *Server) Peer(_ context.Context, req *PeerRequest) (*PeerInfo, error) {
	st, err := s.chat.Peer(req.ChatID)
	if err != nil {
		return nil, toStatus("peer", err)
	}
	p := peerInfo(st)
	return &p, nil
}

func (s *Server) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	draft := message.Draft{Text: req.Text, Media: req.Media, MediaType: req.MediaType}
	if req.BlobURL != "" {
		if s.blobs == nil {
			return nil, grpcstatus.Error(codes.Unavailable, "no blob store")
		}
		data, mime, err := s.blobs.Read(req.BlobURL)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.NotFound, "read %s: %v", req.BlobURL, err)
		}
		draft.Media, draft.MediaType = data, mime
		if strings.HasPrefix(mime, "audio/") {
			draft.Kind = message.KindAudio
		}
	}
	m, err := s.chat.Send(ctx, req.ChatID, draft)
	if err != nil {
		return nil, toStatus("send", err)
	}
	return &SendResponse{Message: m}, nil
}

func (s *Server) Resend(ctx context.Context, req *ResendRequest) (*SendResponse, error) {
	if req.MessageID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message_id is required")
	}
	m, err := s.chat.Resend(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return nil, toStatus("resend", err)
	}
	return &SendResponse{Message: m}, nil
}

func (s *Server) ListMessages(_ context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	msgs, err := s.chat.Messages(req.ChatID)
	if err != nil {
		return nil, toStatus("list messages", err)
	}
	return &ListMessagesResponse{Messages: nonNil(msgs)}, nil
}

func (s *Server) ListFailed(_ context.Context, req *ListFailedRequest) (*ListFailedResponse, error) {
	failed, err := s.chat.Failed(req.ChatID)
	if err != nil {
		return nil, toStatus("list failed", err)
	}
	out := make([]FailedInfo, 0, len(failed))
	for _, f := range failed {
		out = append(out, FailedInfo{Message: f.Message, Error: f.Error, FailedAtMs: f.FailedAt.UnixMilli()})
	}
	return &ListFailedResponse{Failed: out}, nil
}

func (s *Server) ListConversations(_ context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	convs, err := s.chat.Conversations(limit)
	if err != nil {
		return nil, toStatus("list conversations", err)
	}
	out := make([]ConversationInfo, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationInfo{
			ChatID:          c.ChatID,
			PeerID:          c.PeerID,
			PeerName:        c.PeerName,
			LastMessageAtMs: c.LastMessageAt,
			Preview:         c.LastMessagePreview,
		})
	}
	return &ListConversationsResponse{Conversations: out}, nil
}

func (s *Server) MarkRead(_ context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	return &MarkReadResponse{Accepted: s.chat.MarkRead(req.ChatID, req.MessageID)}, nil
}

func (s *Server) Typing(_ context.Context, req *TypingRequest) (*Empty, error) {
	if req.ChatID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chat_id is required")
	}
	s.chat.Typing(req.ChatID)
	return &Empty{}, nil
}

func (s *Server) StartRecording(ctx context.Context, _ *StartRecordingRequest) (*StartRecordingResponse, error) {
	if s.recorder == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "no recorder configured")
	}
	// The capture outlives this call.
	if err := s.recorder.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, toStatus("start recording", err)
	}
	return &StartRecordingResponse{LimitMs: s.recorder.Limit().Milliseconds()}, nil
}

// StopRecording ends the capture. A capture already ended by the duration
// limit is returned once as if it had been stopped now.
func (s *Server) StopRecording(_ context.Context, _ *StopRecordingRequest) (*StopRecordingResponse, error) {
	if s.recorder == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "no recorder configured")
	}
	var (
		rec audio.Recording
		err error
	)
	if s.recorder.Active() {
		rec, err = s.recorder.Stop()
		drain(s.recorder.Done())
	} else {
		select {
		case res := <-s.recorder.Done():
			rec, err = res.Recording, res.Err
		default:
			err = audio.ErrNotRecording
		}
	}
	if err != nil {
		return nil, toStatus("stop recording", err)
	}
	return &StopRecordingResponse{
		URL:        rec.URL,
		MIME:       rec.MIME,
		DurationMs: rec.Duration.Milliseconds(),
		Size:       len(rec.Data),
	}, nil
}

func (s *Server) WatchEvents(req *WatchEventsRequest, stream EventStream) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				s.logger.Warn("unencodable event payload", zap.String("kind", evt.Kind), zap.Error(err))
				payload = nil
			}
			if err := stream.Send(&Event{
				ID:           uuid.New().String(),
				Kind:         evt.Kind,
				OccurredAtMs: evt.Timestamp.UnixMilli(),
				Payload:      payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func peerInfo(st chat.PeerState) PeerInfo {
	p := PeerInfo{
		ID:       st.User.ID,
		Name:     st.User.Name,
		Username: st.User.Username,
		Online:   st.Online,
		Typing:   st.Typing,
	}
	if !st.User.LastActiveAt.IsZero() {
		p.LastActiveAtMs = st.User.LastActiveAt.UnixMilli()
	}
	return p
}

func nonNil(msgs []message.Message) []message.Message {
	if msgs == nil {
		return []message.Message{}
	}
	return msgs
}

func drain(ch <-chan audio.Result) {
	select {
	case <-ch:
	default:
	}
}

// toStatus maps core errors onto gRPC codes.
func toStatus(op string, err error) error {
	var se *api.StatusError
	switch {
	case errors.Is(err, outbox.ErrEmptyDraft):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, outbox.ErrNotFailed),
		errors.Is(err, audio.ErrNotRecording),
		errors.Is(err, audio.ErrEmptyRecording):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, outbox.ErrNotFound), errors.Is(err, chat.ErrNotOpen):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, audio.ErrUnsupported):
		return grpcstatus.Errorf(codes.Unimplemented, "%s: %v", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.As(err, &se):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
