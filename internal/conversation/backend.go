package conversation

import (
	"context"
	"errors"
	"time"
)

// BackendService is the AppContext service key under which the configured
// store module publishes its Backend.
const BackendService = "conversation.backend"

// CacheService is the AppContext service key of the process-wide Cache.
const CacheService = "conversation.cache"

// ErrNotFound is returned by Backend.Get when no live entry exists for a
// session, including entries whose expiry has passed.
var ErrNotFound = errors.New("conversation not found")

// Backend is a key/value store with per-entry expiry, keyed by session id.
// Implementations live under modules/store.
type Backend interface {
	// Get returns the stored payload or ErrNotFound.
	Get(ctx context.Context, sessionID string) ([]byte, error)

	// Set replaces the payload and resets its expiry to ttl from now.
	Set(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error

	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
