package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/springsconnect/springs/internal/message"
)

const failedColumns = `id, chat_id, from_user_id, to_user_id, kind, text, media_url, media_type, created_at, error, failed_at`

const upsertFailed = `
	INSERT INTO failed_messages (` + failedColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text,
		media_url = excluded.media_url,
		media_type = excluded.media_type,
		error = excluded.error,
		failed_at = excluded.failed_at`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// AddFailed stores or refreshes the snapshot of a failed message.
func (db *DB) AddFailed(f FailedMessage) error {
	return addFailed(db, f)
}

func addFailed(ex execer, f FailedMessage) error {
	m := f.Message
	if f.FailedAt.IsZero() {
		f.FailedAt = time.Now()
	}
	_, err := ex.Exec(upsertFailed,
		m.ID, m.ChatID, m.FromUserID, m.ToUserID, string(m.Kind), m.Text, m.MediaURL, m.MediaType,
		m.CreatedAt.UnixMilli(), f.Error, f.FailedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("add failed message %s: %w", m.ID, err)
	}
	return nil
}

// RemoveFailed drops a snapshot. Removing a missing id is not an error.
func (db *DB) RemoveFailed(id string) error {
	if _, err := db.Exec(`DELETE FROM failed_messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove failed message %s: %w", id, err)
	}
	return nil
}

// SupersedeFailed replaces the snapshot oldID with f in one transaction, so a
// retry that fails again leaves exactly one entry behind.
func (db *DB) SupersedeFailed(oldID string, f FailedMessage) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM failed_messages WHERE id = ?`, oldID); err != nil {
		return fmt.Errorf("remove failed message %s: %w", oldID, err)
	}
	if err := addFailed(tx, f); err != nil {
		return err
	}
	return tx.Commit()
}

// ListFailed returns snapshots for chatID, or for every chat when chatID is
// empty, oldest first.
func (db *DB) ListFailed(chatID string) ([]FailedMessage, error) {
	query := `SELECT ` + failedColumns + ` FROM failed_messages`
	var args []any
	if chatID != "" {
		query += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []FailedMessage
	for rows.Next() {
		f, err := scanFailed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFailed returns one snapshot, or nil when id is not queued.
func (db *DB) GetFailed(id string) (*FailedMessage, error) {
	row := db.QueryRow(`SELECT `+failedColumns+` FROM failed_messages WHERE id = ?`, id)
	f, err := scanFailed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CountFailed returns the number of queued snapshots.
func (db *DB) CountFailed() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM failed_messages`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFailed(s scanner) (FailedMessage, error) {
	var (
		f                   FailedMessage
		kind                string
		createdAt, failedAt int64
	)
	m := &f.Message
	if err := s.Scan(&m.ID, &m.ChatID, &m.FromUserID, &m.ToUserID, &kind, &m.Text, &m.MediaURL, &m.MediaType,
		&createdAt, &f.Error, &failedAt); err != nil {
		return FailedMessage{}, err
	}
	m.Kind = message.Kind(kind)
	m.Status = message.StatusFailed
	m.CreatedAt = time.UnixMilli(createdAt)
	f.FailedAt = time.UnixMilli(failedAt)
	return f, nil
}
