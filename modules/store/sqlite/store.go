package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/sage/internal/conversation"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Store implements conversation.Backend over a single SQLite table. Expiry is
// enforced on read; PruneExpired reclaims the space.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path, applies the
// PRAGMAs and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// One connection so the PRAGMAs below apply to every statement.
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements conversation.Backend.
func (s *Store) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM conversations WHERE session_id = ? AND expires_at > ?",
		sessionID, s.now().UnixMilli(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", sessionID, err)
	}
	return payload, nil
}

// Set implements conversation.Backend.
func (s *Store) Set(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, payload, expires_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   payload = excluded.payload,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		sessionID, payload, now.Add(ttl).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %s: %w", sessionID, err)
	}
	return nil
}

// Delete implements conversation.Backend.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", sessionID, err)
	}
	return nil
}

// Ping implements conversation.Backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// PruneExpired implements cron.Pruner.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE expires_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune: %w", err)
	}
	return res.RowsAffected()
}
