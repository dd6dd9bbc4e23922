package store

import (
	"database/sql"
	"time"
)

// UpsertPeer caches a peer profile. Empty names never overwrite known ones.
func (db *DB) UpsertPeer(p *Peer) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO peers (user_id, name, username, last_active_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE peers.name END,
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE peers.username END,
			last_active_at = MAX(peers.last_active_at, excluded.last_active_at),
			updated_at = excluded.updated_at`,
		p.UserID, p.Name, p.Username, p.LastActiveAt, now)
	return err
}

// GetPeer returns a cached peer, or nil when unknown.
func (db *DB) GetPeer(userID string) (*Peer, error) {
	var p Peer
	err := db.QueryRow(`SELECT user_id, name, username, last_active_at FROM peers WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Name, &p.Username, &p.LastActiveAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
