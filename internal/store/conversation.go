package store

import (
	"database/sql"
	"time"
)

// UpsertConversation records that a chat was opened with peerID.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	if c.OpenedAt == 0 {
		c.OpenedAt = now
	}
	_, err := db.Exec(`
		INSERT INTO conversations (chat_id, peer_id, last_message_at, last_message_preview, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			peer_id = excluded.peer_id,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= conversations.last_message_at
				THEN excluded.last_message_preview ELSE conversations.last_message_preview END,
			opened_at = excluded.opened_at,
			updated_at = excluded.updated_at`,
		c.ChatID, c.PeerID, c.LastMessageAt, c.LastMessagePreview, c.OpenedAt, now)
	return err
}

// TouchConversation moves the conversation's preview forward when at is newer
// than what is stored. Unknown chats are ignored.
func (db *DB) TouchConversation(chatID string, at int64, preview string) error {
	_, err := db.Exec(`
		UPDATE conversations SET
			last_message_at = ?,
			last_message_preview = ?,
			updated_at = ?
		WHERE chat_id = ? AND last_message_at <= ?`,
		at, preview, time.Now().UnixMilli(), chatID, at)
	return err
}

// ListConversations returns conversations sorted by last activity. Names are
// resolved from the peer cache with fallback: name -> username -> peer id.
func (db *DB) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT c.chat_id, c.peer_id,
			COALESCE(NULLIF(p.name,''), NULLIF(p.username,''), c.peer_id) AS display_name,
			c.last_message_at, c.last_message_preview, c.opened_at
		FROM conversations c
		LEFT JOIN peers p ON c.peer_id = p.user_id
		ORDER BY MAX(c.last_message_at, c.opened_at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ChatID, &c.PeerID, &c.PeerName, &c.LastMessageAt, &c.LastMessagePreview, &c.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns a conversation by chat id, or nil when unknown.
func (db *DB) GetConversation(chatID string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT c.chat_id, c.peer_id,
			COALESCE(NULLIF(p.name,''), NULLIF(p.username,''), c.peer_id) AS display_name,
			c.last_message_at, c.last_message_preview, c.opened_at
		FROM conversations c
		LEFT JOIN peers p ON c.peer_id = p.user_id
		WHERE c.chat_id = ?`, chatID).
		Scan(&c.ChatID, &c.PeerID, &c.PeerName, &c.LastMessageAt, &c.LastMessagePreview, &c.OpenedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConversationCount returns the number of known conversations.
func (db *DB) ConversationCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}
