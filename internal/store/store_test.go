package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/springsconnect/springs/internal/message"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func failed(id, chatID, text string, at int64) FailedMessage {
	return FailedMessage{
		Message: message.Message{
			ID:         id,
			ChatID:     chatID,
			FromUserID: "me",
			ToUserID:   "peer",
			Kind:       message.KindText,
			Text:       text,
			CreatedAt:  time.UnixMilli(at),
			Status:     message.StatusFailed,
		},
		Error: "network down",
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Errorf("second Migrate() = %+v, want no change", result)
	}
	if result.To != 2 {
		t.Errorf("version = %d, want 2 (failed_messages + conversations)", result.To)
	}
}

func TestOpenProfileMigratesFreshDB(t *testing.T) {
	dir := t.TempDir()
	db, result, err := OpenProfile(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if result.From != 0 || result.To != 2 || !result.Changed() {
		t.Errorf("result = %+v, want 0 -> 2", result)
	}
	if db.Path() != filepath.Join(dir, FileName) {
		t.Errorf("path = %q", db.Path())
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); !errors.Is(err, ErrDirtySchema) {
		t.Fatalf("Migrate() error = %v, want ErrDirtySchema", err)
	}
}

func TestFailedRoundTrip(t *testing.T) {
	db := testDB(t)

	f := failed("temp_1", "room1", "hello", 1000)
	f.Message.Kind = message.KindImage
	f.Message.MediaURL = "blob:abc.png"
	f.Message.MediaType = "image/png"
	if err := db.AddFailed(f); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetFailed("temp_1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("GetFailed returned nil")
	}
	m := got.Message
	if m.ChatID != "room1" || m.Kind != message.KindImage || m.MediaURL != "blob:abc.png" || m.MediaType != "image/png" {
		t.Errorf("message = %+v", m)
	}
	if m.Status != message.StatusFailed {
		t.Errorf("status = %q, want failed", m.Status)
	}
	if m.CreatedAt.UnixMilli() != 1000 {
		t.Errorf("created_at = %v", m.CreatedAt)
	}
	if got.Error != "network down" || got.FailedAt.IsZero() {
		t.Errorf("error = %q failed_at = %v", got.Error, got.FailedAt)
	}

	missing, err := db.GetFailed("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestAddFailedIsUpsert(t *testing.T) {
	db := testDB(t)

	f := failed("temp_1", "room1", "hello", 1000)
	if err := db.AddFailed(f); err != nil {
		t.Fatal(err)
	}
	f.Error = "server returned 500"
	if err := db.AddFailed(f); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountFailed()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	got, _ := db.GetFailed("temp_1")
	if got.Error != "server returned 500" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestSupersedeFailed(t *testing.T) {
	db := testDB(t)

	if err := db.AddFailed(failed("temp_1", "room1", "hello", 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.SupersedeFailed("temp_1", failed("temp_2", "room1", "hello", 1000)); err != nil {
		t.Fatal(err)
	}

	list, err := db.ListFailed("room1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Message.ID != "temp_2" {
		t.Fatalf("list = %+v, want only temp_2", list)
	}
}

func TestListFailedByChat(t *testing.T) {
	db := testDB(t)

	for _, f := range []FailedMessage{
		failed("temp_3", "room1", "third", 3000),
		failed("temp_1", "room1", "first", 1000),
		failed("temp_2", "room2", "other", 2000),
	} {
		if err := db.AddFailed(f); err != nil {
			t.Fatal(err)
		}
	}

	room1, err := db.ListFailed("room1")
	if err != nil {
		t.Fatal(err)
	}
	if len(room1) != 2 || room1[0].Message.ID != "temp_1" || room1[1].Message.ID != "temp_3" {
		t.Errorf("room1 = %+v, want temp_1, temp_3", room1)
	}

	all, err := db.ListFailed("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("got %d snapshots, want 3", len(all))
	}

	if err := db.RemoveFailed("temp_1"); err != nil {
		t.Fatal(err)
	}
	if err := db.RemoveFailed("temp_1"); err != nil {
		t.Errorf("removing twice: %v", err)
	}
	if n, _ := db.CountFailed(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestConversationUpsertAndList(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPeer(&Peer{UserID: "peer", Name: "Ana", LastActiveAt: 500}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{ChatID: "room1", PeerID: "peer", LastMessageAt: 1000, LastMessagePreview: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{ChatID: "room2", PeerID: "bob"}); err != nil {
		t.Fatal(err)
	}

	// An older preview must not replace a newer one.
	if err := db.TouchConversation("room1", 900, "stale"); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchConversation("room1", 2000, "latest"); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("room1")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.PeerName != "Ana" || c.LastMessagePreview != "latest" || c.LastMessageAt != 2000 {
		t.Errorf("room1 = %+v", c)
	}

	list, err := db.ListConversations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	for _, c := range list {
		if c.ChatID == "room2" && c.PeerName != "bob" {
			t.Errorf("room2 name = %q, want peer id fallback", c.PeerName)
		}
	}

	missing, err := db.GetConversation("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown chat")
	}
	if n, _ := db.ConversationCount(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestPeerKeepsKnownName(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPeer(&Peer{UserID: "u", Name: "Ana", Username: "ana", LastActiveAt: 2000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertPeer(&Peer{UserID: "u", LastActiveAt: 1000}); err != nil {
		t.Fatal(err)
	}

	p, err := db.GetPeer("u")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Name != "Ana" || p.Username != "ana" || p.LastActiveAt != 2000 {
		t.Errorf("peer = %+v", p)
	}
}
