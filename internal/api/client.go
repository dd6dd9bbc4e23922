// Package api is the REST client for the chat server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/springsconnect/springs/internal/blob"
	"github.com/springsconnect/springs/internal/message"
	"go.uber.org/zap"
)

// DefaultFetchTimeout bounds room and profile fetches.
const DefaultFetchTimeout = 15 * time.Second

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, truncate(e.Body, 200))
}

// IsServerError reports whether err is a rejection by the server, as opposed
// to a transport failure.
func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Client talks to the chat server over HTTP.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// NewClient creates a client. Message submission uses the transport's default
// timeouts; fetches are bounded by fetchTimeout.
func NewClient(baseURL, token string, fetchTimeout time.Duration, logger *zap.Logger) *Client {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		http:         &http.Client{},
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// SendMessage submits a message as multipart form data and returns the
// server's copy of it.
func (c *Client) SendMessage(ctx context.Context, sub Submission) (message.Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"chatId", sub.ChatID},
		{"from_user_id", sub.FromUserID},
		{"to_user_id", sub.ToUserID},
		{"text", sub.Text},
		{"tempId", sub.TempID},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return message.Message{}, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if len(sub.Media) > 0 {
		// CreateFormFile would label the part application/octet-stream; the
		// server needs the real type to store audio and images correctly.
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="media"; filename="media%s"`, blob.ExtForMIME(sub.MediaType)))
		h.Set("Content-Type", sub.MediaType)
		part, err := w.CreatePart(h)
		if err != nil {
			return message.Message{}, fmt.Errorf("create media part: %w", err)
		}
		if _, err := part.Write(sub.Media); err != nil {
			return message.Message{}, fmt.Errorf("write media: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return message.Message{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/message", &buf)
	if err != nil {
		return message.Message{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp struct {
		Message ServerMessage `json:"message"`
	}
	if err := c.do(req, &resp); err != nil {
		return message.Message{}, err
	}
	if resp.Message.ID == "" {
		return message.Message{}, errors.New("server response has no message id")
	}
	return resp.Message.Message(), nil
}

// GetRoom returns the room shared by two users together with its history.
func (c *Client) GetRoom(ctx context.Context, user1, user2 string) (Room, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("user1", user1)
	q.Set("user2", user2)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat/room?"+q.Encode(), nil)
	if err != nil {
		return Room{}, err
	}

	var resp struct {
		Room struct {
			ID string `json:"_id"`
		} `json:"room"`
		Messages []ServerMessage `json:"messages"`
	}
	if err := c.do(req, &resp); err != nil {
		return Room{}, err
	}

	room := Room{ID: resp.Room.ID, Messages: make([]message.Message, 0, len(resp.Messages))}
	for _, sm := range resp.Messages {
		m := sm.Message()
		if m.ChatID == "" {
			m.ChatID = room.ID
		}
		room.Messages = append(room.Messages, m)
	}
	return room, nil
}

// GetUser fetches a user profile. Both {"user": {...}} and a bare object are
// accepted.
func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/api/user/"+url.PathEscape(id), nil)
	if err != nil {
		return User{}, err
	}

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return User{}, err
	}
	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
