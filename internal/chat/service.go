// Package chat runs conversations: it loads rooms, folds realtime socket
// events into threads, and sends typing signals and read receipts.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/springsconnect/springs/internal/api"
	"github.com/springsconnect/springs/internal/bus"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/outbox"
	"github.com/springsconnect/springs/internal/presence"
	"github.com/springsconnect/springs/internal/socket"
	"github.com/springsconnect/springs/internal/store"
	"github.com/springsconnect/springs/internal/thread"
	"github.com/springsconnect/springs/internal/timing"
	"github.com/springsconnect/springs/internal/typing"
	"go.uber.org/zap"
)

// DefaultReadThrottle is the minimum spacing of outbound read receipts.
const DefaultReadThrottle = 500 * time.Millisecond

// Socket event names.
const (
	EventJoinRoom       = "joinRoom"
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventTyping         = "typing"
	EventMessageRead    = "messageRead"
	EventUserOnline     = "userOnline"
	EventUserOffline    = "userOffline"
)

// ErrNotOpen is returned for chats that were never opened in this session.
var ErrNotOpen = errors.New("conversation not open")

// Rooms fetches room history and peer profiles.
type Rooms interface {
	GetRoom(ctx context.Context, user1, user2 string) (api.Room, error)
	GetUser(ctx context.Context, id string) (api.User, error)
}

// Socket is the realtime channel.
type Socket interface {
	Emit(event string, args ...any)
	On(event string, h socket.Handler)
	OnConnect(fn func())
}

// Store is the local database.
type Store interface {
	ListFailed(chatID string) ([]store.FailedMessage, error)
	UpsertConversation(c *store.Conversation) error
	TouchConversation(chatID string, at int64, preview string) error
	ListConversations(limit int) ([]store.Conversation, error)
	UpsertPeer(p *store.Peer) error
	GetPeer(userID string) (*store.Peer, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	UserID   string
	Threads  *thread.Registry
	Rooms    Rooms
	Socket   Socket
	Store    Store
	Sender   *outbox.Sender
	Presence *presence.Tracker
	Bus      *bus.Bus
	Clock    clockwork.Clock
	Logger   *zap.Logger

	TypingInterval time.Duration
	TypingLinger   time.Duration
	ReadThrottle   time.Duration
}

// View is an opened conversation.
type View struct {
	ChatID   string
	Peer     api.User
	Online   bool
	Messages []message.Message
}

// PeerState is what the header shows about the chat partner.
type PeerState struct {
	User   api.User
	Online bool
	Typing bool
}

type readReceipt struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type typingSignal struct {
	ChatID     string `json:"chatId,omitempty"`
	FromUserID string `json:"from_user_id"`
}

type readSignal struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId,omitempty"`
	Reader    string `json:"reader"`
}

// Service is the conversation core for one signed-in user.
type Service struct {
	me       string
	threads  *thread.Registry
	rooms    Rooms
	socket   Socket
	db       Store
	sender   *outbox.Sender
	presence *presence.Tracker
	bus      *bus.Bus
	logger   *zap.Logger

	typing  *typing.Tracker
	emitter *typing.Emitter
	reads   *timing.Throttle[readReceipt]

	mu    sync.Mutex
	open  map[string]string // chat id -> peer id
	peers map[string]api.User
	read  map[string]bool
}

// NewService wires a service and registers its socket listeners.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.ReadThrottle <= 0 {
		d.ReadThrottle = DefaultReadThrottle
	}
	s := &Service{
		me:       d.UserID,
		threads:  d.Threads,
		rooms:    d.Rooms,
		socket:   d.Socket,
		db:       d.Store,
		sender:   d.Sender,
		presence: d.Presence,
		bus:      d.Bus,
		logger:   d.Logger,
		open:     make(map[string]string),
		peers:    make(map[string]api.User),
		read:     make(map[string]bool),
	}
	s.typing = typing.NewTracker(d.Clock, d.TypingLinger, d.Bus)
	s.emitter = typing.NewEmitter(d.Clock, d.TypingInterval, func(chatID string) {
		s.socket.Emit(EventTyping, typingSignal{ChatID: chatID, FromUserID: s.me})
	})
	s.reads = timing.NewThrottle(d.Clock, d.ReadThrottle, func(r readReceipt) {
		s.socket.Emit(EventMessageRead, r)
	})

	s.socket.On(EventReceiveMessage, s.onReceiveMessage)
	s.socket.On(EventTyping, s.onTyping)
	s.socket.On(EventMessageRead, s.onMessageRead)
	s.socket.On(EventUserOnline, func(args []json.RawMessage) { s.onPresence(args, true) })
	s.socket.On(EventUserOffline, func(args []json.RawMessage) { s.onPresence(args, false) })
	s.socket.OnConnect(s.rejoin)
	return s
}

// UserID returns the signed-in user.
func (s *Service) UserID() string { return s.me }

// Open loads the room shared with peerID, merges failed messages from the
// durable queue, joins the room and fetches the peer profile.
func (s *Service) Open(ctx context.Context, peerID string) (View, error) {
	if peerID == "" || peerID == s.me {
		return View{}, fmt.Errorf("open: invalid peer %q", peerID)
	}
	room, err := s.rooms.GetRoom(ctx, s.me, peerID)
	if err != nil {
		return View{}, fmt.Errorf("load room: %w", err)
	}
	if room.ID == "" {
		return View{}, errors.New("load room: server returned no room id")
	}

	th := s.threads.Get(room.ID)
	for _, m := range room.Messages {
		if _, ok := th.Get(m.ID); ok {
			th.SetStatus(m.ID, m.Status)
			continue
		}
		th.Merge(m)
	}

	failed, err := s.db.ListFailed(room.ID)
	if err != nil {
		s.logger.Error("failed to read failed queue", zap.Error(err), zap.String("chat_id", room.ID))
	}
	for _, f := range failed {
		if s.sender != nil && s.sender.Retrying(f.Message.ID) {
			continue
		}
		th.Append(f.Message)
	}

	s.mu.Lock()
	s.open[room.ID] = peerID
	s.mu.Unlock()
	s.socket.Emit(EventJoinRoom, room.ID)

	peer := s.loadPeer(ctx, peerID)
	msgs := th.Messages()

	conv := &store.Conversation{ChatID: room.ID, PeerID: peerID}
	if n := len(msgs); n > 0 {
		conv.LastMessageAt = msgs[n-1].CreatedAt.UnixMilli()
		conv.LastMessagePreview = preview(msgs[n-1])
	}
	if err := s.db.UpsertConversation(conv); err != nil {
		s.logger.Warn("failed to record conversation", zap.Error(err))
	}

	s.logger.Info("conversation opened",
		zap.String("chat_id", room.ID),
		zap.String("peer", peerID),
		zap.Int("messages", len(msgs)),
		zap.Int("failed", len(failed)),
	)
	return View{ChatID: room.ID, Peer: peer, Online: s.presence.IsOnline(peerID), Messages: msgs}, nil
}

func (s *Service) loadPeer(ctx context.Context, peerID string) api.User {
	u, err := s.rooms.GetUser(ctx, peerID)
	if err != nil {
		s.logger.Warn("failed to fetch peer profile", zap.Error(err), zap.String("peer", peerID))
		u = api.User{ID: peerID}
		if cached, cerr := s.db.GetPeer(peerID); cerr == nil && cached != nil {
			u.Name = cached.Name
			u.Username = cached.Username
			if cached.LastActiveAt > 0 {
				u.LastActiveAt = time.UnixMilli(cached.LastActiveAt)
			}
		}
	} else {
		if u.ID == "" {
			u.ID = peerID
		}
		p := &store.Peer{UserID: peerID, Name: u.Name, Username: u.Username}
		if !u.LastActiveAt.IsZero() {
			p.LastActiveAt = u.LastActiveAt.UnixMilli()
		}
		if err := s.db.UpsertPeer(p); err != nil {
			s.logger.Debug("failed to cache peer", zap.Error(err))
		}
		if u.IsOnline {
			s.presence.Set(peerID, true)
		}
	}

	s.mu.Lock()
	s.peers[peerID] = u
	s.mu.Unlock()
	return u
}

// Send submits a draft to an opened chat.
func (s *Service) Send(ctx context.Context, chatID string, draft message.Draft) (message.Message, error) {
	peerID, err := s.peerOf(chatID)
	if err != nil {
		return message.Message{}, err
	}
	m, err := s.sender.Send(ctx, outbox.Conversation{ChatID: chatID, FromUserID: s.me, ToUserID: peerID}, draft)
	if err != nil {
		return m, err
	}
	s.touch(m)
	return m, nil
}

// Resend retries a failed message.
func (s *Service) Resend(ctx context.Context, chatID, messageID string) (message.Message, error) {
	return s.sender.Resend(ctx, chatID, messageID)
}

// Messages returns the ordered thread of chatID.
func (s *Service) Messages(chatID string) ([]message.Message, error) {
	th, ok := s.threads.Lookup(chatID)
	if !ok {
		return nil, ErrNotOpen
	}
	return th.Messages(), nil
}

// Failed lists durable failed snapshots, for one chat or all when chatID is empty.
func (s *Service) Failed(chatID string) ([]store.FailedMessage, error) {
	return s.db.ListFailed(chatID)
}

// Conversations lists recently opened chats.
func (s *Service) Conversations(limit int) ([]store.Conversation, error) {
	return s.db.ListConversations(limit)
}

// Peer returns the header state for chatID.
func (s *Service) Peer(chatID string) (PeerState, error) {
	peerID, err := s.peerOf(chatID)
	if err != nil {
		return PeerState{}, err
	}
	s.mu.Lock()
	u := s.peers[peerID]
	s.mu.Unlock()
	return PeerState{
		User:   u,
		Online: s.presence.IsOnline(peerID),
		Typing: s.typing.IsTyping(chatID, peerID),
	}, nil
}

// MarkRead reports that messageID scrolled into view. Temp ids, own messages
// and messages already reported are ignored; the rest are throttled.
func (s *Service) MarkRead(chatID, messageID string) bool {
	if message.IsTemp(messageID) {
		return false
	}
	th, ok := s.threads.Lookup(chatID)
	if !ok {
		return false
	}
	m, ok := th.Get(messageID)
	if !ok || m.FromUserID == s.me {
		return false
	}

	s.mu.Lock()
	if s.read[messageID] {
		s.mu.Unlock()
		return false
	}
	s.read[messageID] = true
	s.mu.Unlock()

	s.reads.Submit(readReceipt{MessageID: messageID, ChatID: chatID})
	return true
}

// Typing records a local keystroke in chatID.
func (s *Service) Typing(chatID string) {
	s.emitter.Keystroke(chatID)
}

// Online announces the local user.
func (s *Service) Online() {
	s.socket.Emit(EventUserOnline, s.me)
}

// Offline announces the local user is leaving.
func (s *Service) Offline() {
	s.socket.Emit(EventUserOffline, s.me)
}

// Close stops timers.
func (s *Service) Close() {
	s.emitter.Stop()
	s.reads.Stop()
	s.typing.Stop()
}

func (s *Service) rejoin() {
	s.Online()
	s.mu.Lock()
	chats := make([]string, 0, len(s.open))
	for chatID := range s.open {
		chats = append(chats, chatID)
	}
	s.mu.Unlock()
	for _, chatID := range chats {
		s.socket.Emit(EventJoinRoom, chatID)
	}
}

func (s *Service) onReceiveMessage(args []json.RawMessage) {
	var sm api.ServerMessage
	if !decodeArg(args, &sm) || sm.ID == "" {
		s.logger.Debug("ignoring malformed receiveMessage")
		return
	}
	m := sm.Message()
	if m.ChatID == "" {
		m.ChatID = s.chatWith(m.FromUserID, m.ToUserID)
	}
	if m.ChatID == "" {
		return
	}

	stored, changed := s.threads.Get(m.ChatID).Merge(m)
	if !changed {
		return
	}
	s.bus.Emit(bus.MessageUpserted, bus.MessageRef{ChatID: stored.ChatID, MessageID: stored.ID, Status: string(stored.Status)})
	s.touch(stored)
}

func (s *Service) onTyping(args []json.RawMessage) {
	var sig typingSignal
	if !decodeArg(args, &sig) || sig.FromUserID == "" || sig.FromUserID == s.me {
		return
	}
	chatID := sig.ChatID
	if chatID == "" {
		chatID = s.chatWith(sig.FromUserID, s.me)
	}
	if chatID == "" {
		return
	}
	s.typing.Signal(chatID, sig.FromUserID)
}

// onMessageRead applies a read receipt. Only the recipient of a message can
// mark it seen, so receipts sent by ourselves are ignored.
func (s *Service) onMessageRead(args []json.RawMessage) {
	var sig readSignal
	if !decodeArg(args, &sig) || sig.MessageID == "" || sig.Reader == s.me {
		return
	}
	th, m, ok := s.threads.Find(sig.MessageID)
	if !ok || m.FromUserID != s.me {
		return
	}
	if sig.Reader != "" && sig.Reader != m.ToUserID {
		return
	}
	updated, changed := th.SetStatus(m.ID, message.StatusSeen)
	if !changed {
		return
	}
	s.bus.Emit(bus.MessageStatus, bus.MessageRef{ChatID: updated.ChatID, MessageID: updated.ID, Status: string(updated.Status)})
}

func (s *Service) onPresence(args []json.RawMessage, online bool) {
	userID := presenceUser(args)
	if userID == "" || userID == s.me {
		return
	}
	s.presence.Set(userID, online)
}

func (s *Service) peerOf(chatID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	peerID, ok := s.open[chatID]
	if !ok {
		return "", ErrNotOpen
	}
	return peerID, nil
}

// chatWith finds the opened chat between the local user and whichever of a
// and b is the peer.
func (s *Service) chatWith(a, b string) string {
	peer := a
	if peer == s.me {
		peer = b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for chatID, p := range s.open {
		if p == peer {
			return chatID
		}
	}
	return ""
}

func (s *Service) touch(m message.Message) {
	if err := s.db.TouchConversation(m.ChatID, m.CreatedAt.UnixMilli(), preview(m)); err != nil {
		s.logger.Debug("failed to update conversation preview", zap.Error(err))
	}
}

func preview(m message.Message) string {
	switch {
	case m.Text != "":
		return m.Text
	case m.Kind == message.KindAudio:
		return "[voice message]"
	case m.Kind == message.KindImage:
		return "[image]"
	}
	return ""
}

func decodeArg(args []json.RawMessage, v any) bool {
	if len(args) == 0 {
		return false
	}
	return json.Unmarshal(args[0], v) == nil
}

// presenceUser accepts both "id" and {"userId": "id"} payloads.
func presenceUser(args []json.RawMessage) string {
	var id string
	if decodeArg(args, &id) {
		return id
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if decodeArg(args, &obj) {
		return obj.UserID
	}
	return ""
}
