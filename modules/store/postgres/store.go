package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/sage/internal/conversation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements conversation.Backend over a PostgreSQL table.
type Store struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
}

// NewPool parses cfg.DSN and builds a pool. Connections are opened lazily.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	return pool, nil
}

// NewStore wraps pool. The schema must already be a validated identifier.
func NewStore(pool *pgxpool.Pool, schema string) *Store {
	return &Store{
		pool:  pool,
		table: pgx.Identifier{schema, "conversations"}.Sanitize(),
		now:   time.Now,
	}
}

// Migrate creates the table and index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			session_id TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_expires_at_idx ON ` + s.table + ` (expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// Get implements conversation.Backend.
func (s *Store) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM `+s.table+` WHERE session_id = $1 AND expires_at > $2`,
		sessionID, s.now().UTC(),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	return payload, nil
}

// Set implements conversation.Backend.
func (s *Store) Set(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (session_id, payload, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = EXCLUDED.updated_at`,
		sessionID, payload, now.Add(ttl), now,
	)
	if err != nil {
		return fmt.Errorf("postgres: set: %w", err)
	}
	return nil
}

// Delete implements conversation.Backend.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	return nil
}

// Ping implements conversation.Backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PruneExpired implements cron.Pruner.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
