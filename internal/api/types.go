package api

import (
	"strings"
	"time"

	"github.com/springsconnect/springs/internal/message"
)

// ServerMessage is a message as the chat server serializes it, both in REST
// responses and in socket events.
type ServerMessage struct {
	ID         string    `json:"_id"`
	ChatID     string    `json:"chatId"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Type       string    `json:"type,omitempty"`
	Text       string    `json:"text"`
	MediaURL   string    `json:"mediaUrl,omitempty"`
	MediaType  string    `json:"mediaType,omitempty"`
	TempID     string    `json:"tempId,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message converts the wire form into a domain message. Messages without a
// server status are treated as sent.
func (s ServerMessage) Message() message.Message {
	m := message.Message{
		ID:         s.ID,
		ChatID:     s.ChatID,
		FromUserID: s.FromUserID,
		ToUserID:   s.ToUserID,
		Kind:       message.Kind(s.Type),
		Text:       s.Text,
		MediaURL:   s.MediaURL,
		MediaType:  s.MediaType,
		TempID:     s.TempID,
		CreatedAt:  s.CreatedAt,
		Status:     message.Status(s.Status),
	}
	if m.Kind == "" {
		m.Kind = kindFor(s.MediaURL, s.MediaType)
	}
	switch m.Status {
	case message.StatusSent, message.StatusDelivered, message.StatusSeen:
	default:
		m.Status = message.StatusSent
	}
	return m
}

// FromMessage converts a confirmed domain message back to its wire form.
func FromMessage(m message.Message) ServerMessage {
	return ServerMessage{
		ID:         m.ID,
		ChatID:     m.ChatID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		Type:       string(m.Kind),
		Text:       m.Text,
		MediaURL:   m.MediaURL,
		MediaType:  m.MediaType,
		TempID:     m.TempID,
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}

func kindFor(mediaURL, mediaType string) message.Kind {
	switch {
	case mediaURL == "":
		return message.KindText
	case strings.HasPrefix(mediaType, "audio/"):
		return message.KindAudio
	default:
		return message.KindImage
	}
}

// Room is a two-party conversation with its history.
type Room struct {
	ID       string
	Messages []message.Message
}

// User is the peer profile shown in the conversation header.
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Avatar       string    `json:"avatar,omitempty"`
	IsOnline     bool      `json:"isOnline"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// DisplayName returns the best human-readable name.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	}
	return u.ID
}

// Submission is one multipart send request.
type Submission struct {
	ChatID     string
	FromUserID string
	ToUserID   string
	Text       string
	TempID     string
	Media      []byte
	MediaType  string
}
