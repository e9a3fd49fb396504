// Package store keeps saved chat transcripts in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/capitalize-ai/chatstream/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    chat_started TEXT NOT NULL,
    chat_id TEXT,
    first_message TEXT NOT NULL DEFAULT '',
    messages TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (username, chat_started)
);

CREATE INDEX IF NOT EXISTS idx_chats_user_updated ON chats(username, updated_at DESC);
`

// SQLite is a chat history backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Name implements the chat sink interface.
func (s *SQLite) Name() string {
	return "sqlite"
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save inserts the chat or, when (username, chat_started) already exists,
// replaces its messages and first message.
func (s *SQLite) Save(ctx context.Context, rec *model.ChatRecord) error {
	if rec.ChatStarted == "" {
		return errors.New("chat_started is required")
	}

	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (username, chat_started, chat_id, first_message, messages, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, chat_started) DO UPDATE SET
			chat_id = COALESCE(NULLIF(excluded.chat_id, ''), chats.chat_id),
			first_message = excluded.first_message,
			messages = excluded.messages,
			updated_at = excluded.updated_at`,
		rec.Username, rec.ChatStarted, rec.ChatID, rec.FirstMessage, string(messages), updated,
	)
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// List returns the saved chats of username, most recently updated first.
// Messages are not loaded.
func (s *SQLite) List(ctx context.Context, username string) ([]model.ChatRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_started, COALESCE(chat_id, ''), first_message, updated_at
		FROM chats WHERE username = ?
		ORDER BY updated_at DESC, id DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []model.ChatRecord
	for rows.Next() {
		rec := model.ChatRecord{Username: username}
		if err := rows.Scan(&rec.ChatStarted, &rec.ChatID, &rec.FirstMessage, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get loads one saved chat including its messages.
func (s *SQLite) Get(ctx context.Context, username, chatStarted string) (*model.ChatRecord, error) {
	rec := model.ChatRecord{Username: username, ChatStarted: chatStarted}
	var messages string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(chat_id, ''), first_message, messages, updated_at
		FROM chats WHERE username = ? AND chat_started = ?`, username, chatStarted,
	).Scan(&rec.ChatID, &rec.FirstMessage, &messages, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return &rec, nil
}

// ErrNotFound is returned by Get for unknown chats.
var ErrNotFound = errors.New("chat not saved")
