// Package sqlite provides a durable ContextStore backed by SQLite via the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/planmesh/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_snapshots (
	conversation_id TEXT PRIMARY KEY,
	snapshot        BLOB NOT NULL,
	updated_at      TEXT NOT NULL
);
`

// Store persists conversation snapshots in a SQLite database.
type Store struct {
	db *sql.DB
}

var _ core.ContextStore = (*Store)(nil)

// Open opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports one concurrent writer. A single connection serialises
	// writes and avoids SQLITE_BUSY under concurrent load; WAL mode lets
	// readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the snapshot for a conversation.
func (s *Store) Save(ctx context.Context, conversationID string, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_snapshots (conversation_id, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		conversationID, snapshot, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", conversationID, err)
	}
	return nil
}

// Load returns the stored snapshot, or core.ErrNotFound.
func (s *Store) Load(ctx context.Context, conversationID string) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM conversation_snapshots WHERE conversation_id = ?`,
		conversationID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %s: %w", conversationID, err)
	}
	return snapshot, nil
}

// Delete removes a conversation's snapshot. Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_snapshots WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete snapshot for %s: %w", conversationID, err)
	}
	return nil
}
