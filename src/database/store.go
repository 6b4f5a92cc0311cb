// Package database persists characters, chats and messages in libSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

const memoryPath = ":memory:"

type Store struct {
	db  *sql.DB
	tx  *TxManager
	now func() time.Time
}

// Open connects to the libSQL database at path, creating the directory and
// schema as needed. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := memoryPath
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every pooled connection to :memory: would see its own database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, tx: NewTxManager(db), now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		gender TEXT,
		personality_traits TEXT NOT NULL DEFAULT '[]',
		backstory TEXT,
		meet_cute TEXT,
		height TEXT,
		build TEXT,
		eye_color TEXT,
		hair_color TEXT,
		skin_tone TEXT,
		art_style TEXT,
		image_url TEXT,
		voice_id TEXT,
		voice_name TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_characters_user ON characters(user_id)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		character_id TEXT NOT NULL REFERENCES characters(id),
		love_meter INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id),
		sender TEXT NOT NULL CHECK (sender IN ('user', 'character')),
		content TEXT NOT NULL,
		message_type TEXT NOT NULL DEFAULT 'text' CHECK (message_type IN ('text', 'audio_log')),
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at)`,
}

func (s *Store) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
