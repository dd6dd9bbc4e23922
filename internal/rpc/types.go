// Package rpc is the local control plane between springsd and its clients:
// a gRPC service over the profile's unix socket, encoded as JSON.
package rpc

import (
	"encoding/json"

	"github.com/springsconnect/springs/internal/message"
)

type StatusRequest struct{}

type StatusResponse struct {
	Profile           string `json:"profile"`
	UserID            string `json:"user_id"`
	State             string `json:"state"`
	Connected         bool   `json:"connected"`
	UptimeMs          int64  `json:"uptime_ms"`
	FailedCount       int64  `json:"failed_count"`
	ConversationCount int64  `json:"conversation_count"`
	Recording         bool   `json:"recording"`
}

type OpenRequest struct {
	PeerID string `json:"peer_id"`
}

type OpenResponse struct {
	ChatID   string            `json:"chat_id"`
	Peer     PeerInfo          `json:"peer"`
	Messages []message.Message `json:"messages"`
}

// PeerInfo is the chat partner as shown in a conversation header.
type PeerInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Username       string `json:"username,omitempty"`
	Online         bool   `json:"online"`
	Typing         bool   `json:"typing"`
	LastActiveAtMs int64  `json:"last_active_at_ms,omitempty"`
}

type PeerRequest struct {
	ChatID string `json:"chat_id"`
}

// SendRequest carries a draft. Media is either inline bytes or a blob URL
// previously produced by StopRecording.
type SendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text,omitempty"`
	Media     []byte `json:"media,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	BlobURL   string `json:"blob_url,omitempty"`
}

type SendResponse struct {
	Message message.Message `json:"message"`
}

type ResendRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

type ListMessagesRequest struct {
	ChatID string `json:"chat_id"`
}

type ListMessagesResponse struct {
	Messages []message.Message `json:"messages"`
}

type ListFailedRequest struct {
	ChatID string `json:"chat_id,omitempty"`
}

type FailedInfo struct {
	Message    message.Message `json:"message"`
	Error      string          `json:"error"`
	FailedAtMs int64           `json:"failed_at_ms"`
}

type ListFailedResponse struct {
	Failed []FailedInfo `json:"failed"`
}

type ListConversationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ConversationInfo struct {
	ChatID          string `json:"chat_id"`
	PeerID          string `json:"peer_id"`
	PeerName        string `json:"peer_name,omitempty"`
	LastMessageAtMs int64  `json:"last_message_at_ms"`
	Preview         string `json:"preview,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

type MarkReadRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

type MarkReadResponse struct {
	Accepted bool `json:"accepted"`
}

type TypingRequest struct {
	ChatID string `json:"chat_id"`
}

type Empty struct{}

type StartRecordingRequest struct{}

type StartRecordingResponse struct {
	LimitMs int64 `json:"limit_ms"`
}

type StopRecordingRequest struct{}

type StopRecordingResponse struct {
	URL        string `json:"url"`
	MIME       string `json:"mime"`
	DurationMs int64  `json:"duration_ms"`
	Size       int    `json:"size"`
}

type WatchEventsRequest struct {
	// Prefix filters event kinds; empty receives everything.
	Prefix string `json:"prefix,omitempty"`
}

// Event is one bus event as streamed to clients.
type Event struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}
