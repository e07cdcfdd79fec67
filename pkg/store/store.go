// Package store keeps a local record of conversations seen through the
// bridge, so listing and titling work without driving the browser.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a conversation is not in the local record.
var ErrNotFound = errors.New("conversation not found")

// Conversation is one locally recorded conversation.
type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	LastMessageID string    `json:"last_message_id"`
	Turns         int       `json:"turns"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is a sqlite-backed conversation record.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	last_message_id TEXT NOT NULL DEFAULT '',
	turns           INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
`

// Open opens (or creates) the store at path. Use ":memory:" for an
// ephemeral store.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// RecordTurn upserts a conversation after a successful turn, advancing
// its last message id and turn count.
func (s *Store) RecordTurn(ctx context.Context, conversationID, lastMessageID string) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, last_message_id, turns, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_id = excluded.last_message_id,
			turns = turns + 1,
			updated_at = excluded.updated_at`,
		conversationID, lastMessageID, now, now)
	if err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	return nil
}

// SetTitle records a conversation's title locally.
func (s *Store) SetTitle(ctx context.Context, conversationID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one recorded conversation.
func (s *Store) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, last_message_id, turns, created_at, updated_at
		FROM conversations WHERE id = ?`, conversationID)

	var c Conversation
	err := row.Scan(&c.ID, &c.Title, &c.LastMessageID, &c.Turns, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &c, nil
}

// List returns recorded conversations, most recently updated first.
func (s *Store) List(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_message_id, turns, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.LastMessageID, &c.Turns, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a conversation from the local record.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
