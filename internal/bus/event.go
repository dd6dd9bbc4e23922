package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the chat core.
const (
	MessageUpserted  = "message.upserted"
	MessageConfirmed = "message.confirmed"
	MessageFailed    = "message.failed"
	MessageStatus    = "message.status"

	TypingChanged   = "typing.changed"
	PresenceChanged = "presence.changed"

	RecordingStarted = "recording.started"
	RecordingTick    = "recording.tick"
	RecordingStopped = "recording.stopped"

	ConnectionChanged = "connection.changed"
)

// MessageRef identifies a message inside a chat.
type MessageRef struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	// PreviousID is set when the message replaced another entry
	// (temp id confirmed by the server, or a retry superseding a failure).
	PreviousID string `json:"previous_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TypingChange reports a remote user starting or stopping typing.
type TypingChange struct {
	ChatID     string `json:"chat_id"`
	FromUserID string `json:"from_user_id"`
	Typing     bool   `json:"typing"`
}

// PresenceChange reports a user going online or offline.
type PresenceChange struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// RecordingState reports progress or the outcome of an audio capture.
type RecordingState struct {
	Elapsed time.Duration `json:"elapsed"`
	Limit   time.Duration `json:"limit"`
	MIME    string        `json:"mime,omitempty"`
	URL     string        `json:"url,omitempty"`
	Error   string        `json:"error,omitempty"`
}
