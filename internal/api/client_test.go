package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/springsconnect/springs/internal/message"
)

func TestSendMessageMultipart(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat/message" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		want := map[string]string{
			"chatId":       "room1",
			"from_user_id": "me",
			"to_user_id":   "peer",
			"text":         "hello",
			"tempId":       "temp_1",
		}
		for k, v := range want {
			if got := r.FormValue(k); got != v {
				t.Errorf("field %s = %q, want %q", k, got, v)
			}
		}

		f, hdr, err := r.FormFile("media")
		if err != nil {
			t.Fatalf("media part: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "OggS" {
			t.Errorf("media = %q", data)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "audio/ogg" {
			t.Errorf("media Content-Type = %q", ct)
		}
		if hdr.Filename != "media.ogg" {
			t.Errorf("filename = %q", hdr.Filename)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"message": ServerMessage{
			ID:         "srv1",
			ChatID:     "room1",
			FromUserID: "me",
			ToUserID:   "peer",
			Text:       "hello",
			MediaURL:   "https://cdn/a.ogg",
			MediaType:  "audio/ogg",
			TempID:     "temp_1",
			CreatedAt:  created,
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", 0, nil)
	m, err := c.SendMessage(context.Background(), Submission{
		ChatID:     "room1",
		FromUserID: "me",
		ToUserID:   "peer",
		Text:       "hello",
		TempID:     "temp_1",
		Media:      []byte("OggS"),
		MediaType:  "audio/ogg",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.ID != "srv1" || m.Kind != message.KindAudio || m.Status != message.StatusSent {
		t.Errorf("message = %+v", m)
	}
	if !m.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", m.CreatedAt)
	}
}

func TestSendMessageTextOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if _, _, err := r.FormFile("media"); !errors.Is(err, http.ErrMissingFile) {
			t.Errorf("unexpected media part: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"_id":"srv2","chatId":"room1","text":"hi"}}`))
	}))
	defer srv.Close()

	m, err := NewClient(srv.URL, "", 0, nil).SendMessage(context.Background(), Submission{ChatID: "room1", Text: "hi"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.Kind != message.KindText {
		t.Errorf("Kind = %q, want text", m.Kind)
	}
}

func TestSendMessageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"too large"}`, http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0, nil).SendMessage(context.Background(), Submission{Text: "x"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Code = %d", se.Code)
	}
	if !IsServerError(err) {
		t.Error("IsServerError = false")
	}
}

func TestSendMessageNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", 0, nil).SendMessage(context.Background(), Submission{Text: "x"})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if IsServerError(err) {
		t.Error("network failure classified as server error")
	}
}

func TestGetRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/room" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("user1") != "me" || r.URL.Query().Get("user2") != "peer" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{
			"room": {"_id": "room1"},
			"messages": [
				{"_id": "a", "from_user_id": "peer", "to_user_id": "me", "text": "yo", "status": "seen", "createdAt": "2026-03-01T10:00:00Z"},
				{"_id": "b", "from_user_id": "me", "to_user_id": "peer", "mediaUrl": "https://cdn/p.png", "mediaType": "image/png", "createdAt": "2026-03-01T10:01:00Z"}
			]
		}`))
	}))
	defer srv.Close()

	room, err := NewClient(srv.URL, "", time.Second, nil).GetRoom(context.Background(), "me", "peer")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room.ID != "room1" || len(room.Messages) != 2 {
		t.Fatalf("room = %+v", room)
	}
	if room.Messages[0].ChatID != "room1" {
		t.Errorf("ChatID not filled from room: %q", room.Messages[0].ChatID)
	}
	if room.Messages[0].Status != message.StatusSeen {
		t.Errorf("status = %q, want seen", room.Messages[0].Status)
	}
	if room.Messages[1].Kind != message.KindImage {
		t.Errorf("kind = %q, want image", room.Messages[1].Kind)
	}
}

func TestGetUser(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped", `{"user":{"_id":"peer","name":"Ana","lastActiveAt":"2026-03-01T09:00:00Z"}}`},
		{"bare", `{"_id":"peer","name":"Ana","lastActiveAt":"2026-03-01T09:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/user/peer" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			u, err := NewClient(srv.URL, "", 0, nil).GetUser(context.Background(), "peer")
			if err != nil {
				t.Fatalf("GetUser: %v", err)
			}
			if u.DisplayName() != "Ana" {
				t.Errorf("DisplayName = %q", u.DisplayName())
			}
			if u.LastActiveAt.IsZero() {
				t.Error("LastActiveAt not decoded")
			}
		})
	}
}

func TestGetUserTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	_, err := NewClient(srv.URL, "", 20*time.Millisecond, nil).GetUser(context.Background(), "peer")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
