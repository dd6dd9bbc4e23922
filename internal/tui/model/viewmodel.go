package model

import (
	"context"
	"sync"

	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/rpc"
)

// Client is the part of the control plane the TUI uses.
type Client interface {
	Status(ctx context.Context) (*rpc.StatusResponse, error)
	Open(ctx context.Context, peerID string) (*rpc.OpenResponse, error)
	Peer(ctx context.Context, chatID string) (*rpc.PeerInfo, error)
	Send(ctx context.Context, req *rpc.SendRequest) (*rpc.SendResponse, error)
	Resend(ctx context.Context, chatID, messageID string) (*rpc.SendResponse, error)
	ListMessages(ctx context.Context, chatID string) (*rpc.ListMessagesResponse, error)
	ListConversations(ctx context.Context, limit int) (*rpc.ListConversationsResponse, error)
	MarkRead(ctx context.Context, chatID, messageID string) (*rpc.MarkReadResponse, error)
	Typing(ctx context.Context, chatID string) error
	StartRecording(ctx context.Context) (*rpc.StartRecordingResponse, error)
	StopRecording(ctx context.Context) (*rpc.StopRecordingResponse, error)
}

// ViewModel caches daemon state for the views.
type ViewModel struct {
	mu sync.RWMutex

	client        Client
	status        *rpc.StatusResponse
	conversations []rpc.ConversationInfo
	chatID        string
	peer          rpc.PeerInfo
	messages      []message.Message
	recording     bool
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c Client) *ViewModel {
	return &ViewModel{client: c}
}

// LoadStatus fetches current daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.recording = resp.Recording
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.client.ListConversations(ctx, 100)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.mu.Unlock()
	return nil
}

// Open makes peerID's conversation the active one.
func (vm *ViewModel) Open(ctx context.Context, peerID string) error {
	resp, err := vm.client.Open(ctx, peerID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chatID = resp.ChatID
	vm.peer = resp.Peer
	vm.messages = resp.Messages
	vm.mu.Unlock()
	return nil
}

// Close leaves the active conversation.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.chatID = ""
	vm.peer = rpc.PeerInfo{}
	vm.messages = nil
	vm.mu.Unlock()
}

// ReloadMessages refreshes the active thread.
func (vm *ViewModel) ReloadMessages(ctx context.Context) error {
	chatID := vm.ChatID()
	if chatID == "" {
		return nil
	}
	resp, err := vm.client.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.chatID == chatID {
		vm.messages = resp.Messages
	}
	vm.mu.Unlock()
	return nil
}

// ReloadPeer refreshes presence and typing of the active peer.
func (vm *ViewModel) ReloadPeer(ctx context.Context) error {
	chatID := vm.ChatID()
	if chatID == "" {
		return nil
	}
	p, err := vm.client.Peer(ctx, chatID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.chatID == chatID {
		vm.peer = *p
	}
	vm.mu.Unlock()
	return nil
}

// SendText sends text to the active conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	_, err := vm.client.Send(ctx, &rpc.SendRequest{ChatID: vm.ChatID(), Text: text})
	return err
}

// SendBlob sends a recorded blob to the active conversation.
func (vm *ViewModel) SendBlob(ctx context.Context, url string) error {
	_, err := vm.client.Send(ctx, &rpc.SendRequest{ChatID: vm.ChatID(), BlobURL: url})
	return err
}

// Retry resends a failed message of the active conversation.
func (vm *ViewModel) Retry(ctx context.Context, messageID string) error {
	_, err := vm.client.Resend(ctx, vm.ChatID(), messageID)
	return err
}

// MarkRead reports an incoming message as seen.
func (vm *ViewModel) MarkRead(ctx context.Context, messageID string) error {
	_, err := vm.client.MarkRead(ctx, vm.ChatID(), messageID)
	return err
}

// Typing forwards a keystroke in the composer.
func (vm *ViewModel) Typing(ctx context.Context) error {
	chatID := vm.ChatID()
	if chatID == "" {
		return nil
	}
	return vm.client.Typing(ctx, chatID)
}

// ToggleRecording starts a capture, or stops the running one and sends it.
// It returns whether a capture is running afterwards.
func (vm *ViewModel) ToggleRecording(ctx context.Context) (bool, error) {
	if !vm.Recording() {
		if _, err := vm.client.StartRecording(ctx); err != nil {
			return false, err
		}
		vm.setRecording(true)
		return true, nil
	}
	vm.setRecording(false)
	rec, err := vm.client.StopRecording(ctx)
	if err != nil {
		return false, err
	}
	return false, vm.SendBlob(ctx, rec.URL)
}

// SetRecording records a capture state reported by the daemon.
func (vm *ViewModel) SetRecording(on bool) { vm.setRecording(on) }

func (vm *ViewModel) setRecording(on bool) {
	vm.mu.Lock()
	vm.recording = on
	vm.mu.Unlock()
}

// Recording reports whether a capture is running.
func (vm *ViewModel) Recording() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.recording
}

// ChatID returns the active chat, or empty.
func (vm *ViewModel) ChatID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.chatID
}

// Peer returns the active chat partner.
func (vm *ViewModel) Peer() rpc.PeerInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.peer
}

// Messages returns a snapshot of the active thread.
func (vm *ViewModel) Messages() []message.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]message.Message(nil), vm.messages...)
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []rpc.ConversationInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// Status returns a snapshot of daemon status.
func (vm *ViewModel) Status() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}
