package message

import (
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Kind is the content type of a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Status is the delivery state of a message as seen by its sender.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
	StatusFailed    Status = "failed"
)

// TempPrefix marks ids assigned locally before the server confirms a message.
const TempPrefix = "temp_"

// Message is a single chat message, either optimistic (temp id) or server-confirmed.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Kind       Kind      `json:"kind"`
	Text       string    `json:"text"`
	MediaURL   string    `json:"media_url,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Status     Status    `json:"status"`
	TempID     string    `json:"temp_id,omitempty"`
}

// IsTemp reports whether the message still carries a locally generated id.
func (m Message) IsTemp() bool {
	return IsTemp(m.ID)
}

// Draft is a user-authored message that has not been submitted yet.
type Draft struct {
	Text      string
	Media     []byte
	MediaType string
	Kind      Kind
}

// Empty reports whether the draft carries neither text nor media.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == "" && len(d.Media) == 0
}

// ResolvedKind returns the draft kind, inferring it from the media type when unset.
func (d Draft) ResolvedKind() Kind {
	if d.Kind != "" {
		return d.Kind
	}
	if len(d.Media) == 0 {
		return KindText
	}
	switch {
	case strings.HasPrefix(d.MediaType, "audio/"):
		return KindAudio
	case strings.HasPrefix(d.MediaType, "image/"):
		return KindImage
	}
	return KindImage
}

var lastTemp atomic.Int64

// NewTempID returns a temp_<unix-nanos> id that never repeats within the process.
func NewTempID() string {
	for {
		now := time.Now().UnixNano()
		prev := lastTemp.Load()
		if now <= prev {
			now = prev + 1
		}
		if lastTemp.CompareAndSwap(prev, now) {
			return TempPrefix + strconv.FormatInt(now, 10)
		}
	}
}

// IsTemp reports whether id was generated by NewTempID.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// SortByCreated orders messages by ascending CreatedAt, breaking ties by id.
func SortByCreated(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
