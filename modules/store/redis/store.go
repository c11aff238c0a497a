package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/sage/internal/conversation"
	goredis "github.com/redis/go-redis/v9"
)

// Store implements conversation.Backend with one string key per session,
// written with SET EX so Redis expires it.
type Store struct {
	client *goredis.Client
	prefix string
}

// NewStore builds a client from cfg. No connection is made until first use.
func NewStore(cfg Config) (*Store, error) {
	cfg.defaults()
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	timeout := cfg.parsedTimeout()
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return &Store{client: goredis.NewClient(opts), prefix: cfg.KeyPrefix}, nil
}

// Key returns the Redis key for a session.
func (s *Store) Key(sessionID string) string {
	return s.prefix + sessionID
}

// Close releases the client's connections.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get implements conversation.Backend.
func (s *Store) Get(ctx context.Context, sessionID string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.Key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	return b, nil
}

// Set implements conversation.Backend.
func (s *Store) Set(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.Key(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Delete implements conversation.Backend.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}

// Ping implements conversation.Backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
