package store

import (
	"time"

	"github.com/springsconnect/springs/internal/message"
)

// FailedMessage is a cold copy of a message whose submission failed.
type FailedMessage struct {
	Message  message.Message
	Error    string
	FailedAt time.Time
}

// Conversation is a recently opened two-party chat.
type Conversation struct {
	ChatID             string
	PeerID             string
	PeerName           string
	LastMessageAt      int64
	LastMessagePreview string
	OpenedAt           int64
}

// Peer is the cached profile of a chat partner.
type Peer struct {
	UserID       string
	Name         string
	Username     string
	LastActiveAt int64
}
