// Package store is the profile's SQLite database: the durable queue of failed
// outgoing messages plus a small cache of conversations and peer profiles.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file inside a profile directory.
const FileName = "springs.db"

// DB is the profile database.
type DB struct {
	*sql.DB
	path string
}

// Open opens the database at path. Writers wait up to five seconds for the
// lock, and transactions take it when they begin.
func Open(path string) (*DB, error) {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	db, err := sql.Open("sqlite3", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// OpenProfile opens the database of the profile stored in dir and migrates
// it. Nothing is left open on error.
func OpenProfile(dir string) (*DB, *MigrateResult, error) {
	db, err := Open(filepath.Join(dir, FileName))
	if err != nil {
		return nil, nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, result, nil
}

// Path returns the database file.
func (db *DB) Path() string { return db.path }
