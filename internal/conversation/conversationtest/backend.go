// Package conversationtest provides test doubles for the conversation package.
package conversationtest

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/flemzord/sage/internal/conversation"
)

// Backend is an in-memory conversation.Backend that ignores expiry and
// records the TTL of every write. Set the Err fields to make calls fail.
// All methods are safe for concurrent use.
type Backend struct {
	PingErr   error
	GetErr    error
	SetErr    error
	DeleteErr error

	mu      sync.Mutex
	entries map[string][]byte
	ttls    []time.Duration
	sets    int
	deletes int
}

// Compile-time interface check.
var _ conversation.Backend = (*Backend)(nil)

// NewBackend returns an empty Backend.
func NewBackend() *Backend {
	return &Backend{entries: make(map[string][]byte)}
}

// Get implements conversation.Backend.
func (b *Backend) Get(_ context.Context, sessionID string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.GetErr != nil {
		return nil, b.GetErr
	}
	v, ok := b.entries[sessionID]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements conversation.Backend.
func (b *Backend) Set(_ context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets++
	if b.SetErr != nil {
		return b.SetErr
	}
	b.entries[sessionID] = append([]byte(nil), payload...)
	b.ttls = append(b.ttls, ttl)
	return nil
}

// Delete implements conversation.Backend.
func (b *Backend) Delete(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	delete(b.entries, sessionID)
	return nil
}

// Ping implements conversation.Backend.
func (b *Backend) Ping(_ context.Context) error {
	return b.PingErr
}

// Raw returns the stored payload for sessionID.
func (b *Backend) Raw(sessionID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.entries[sessionID]
	return v, ok
}

// Put stores a raw payload, bypassing SetErr.
func (b *Backend) Put(sessionID string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[sessionID] = payload
}

// Snapshot returns a copy of every stored payload.
func (b *Backend) Snapshot() map[string][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.entries)
}

// TTLs returns the TTL passed to every successful Set, in call order.
func (b *Backend) TTLs() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Duration(nil), b.ttls...)
}

// SetCalls returns the number of Set calls, failed ones included.
func (b *Backend) SetCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets
}

// DeleteCalls returns the number of Delete calls, failed ones included.
func (b *Backend) DeleteCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletes
}
