package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL is the sliding expiry applied when none is configured.
const DefaultTTL = 30 * time.Minute

// Cache is the best-effort conversation store. It encodes histories as JSON
// snapshots in a Backend and never fails the request path: when the backend
// is missing, failed its startup probe, or errors on a call, loads report
// absence and writes become no-ops. Failures are logged, misses are not.
//
// A cache miss and an unreachable backend are deliberately indistinguishable
// to callers; Available tells them apart for health reporting.
type Cache struct {
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer

	available atomic.Bool
	failures  atomic.Int64
}

// NewCache wraps backend, which may be nil to run without a store.
// A non-positive ttl selects DefaultTTL.
func NewCache(backend Backend, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		tracer:  otel.Tracer("github.com/flemzord/sage/internal/conversation"),
	}
	c.available.Store(backend != nil)
	return c
}

// Connect probes the backend once at startup. On failure the cache stays
// degraded for the life of the process and the probe error is returned so
// the caller can log it; it is never fatal.
func (c *Cache) Connect(ctx context.Context) error {
	if c.backend == nil {
		c.logger.Warn("no conversation store configured, history will not persist")
		return nil
	}
	if err := c.backend.Ping(ctx); err != nil {
		c.available.Store(false)
		return fmt.Errorf("conversation: store unreachable, continuing without history: %w", err)
	}
	c.available.Store(true)
	c.logger.Info("conversation store connected", "ttl", c.ttl)
	return nil
}

// Available reports whether the cache is backed by a reachable store.
func (c *Cache) Available() bool {
	return c.available.Load()
}

// Failures returns the number of backend calls that failed since startup.
func (c *Cache) Failures() int64 {
	return c.failures.Load()
}

// TTL returns the sliding expiry applied on every save.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Load returns the stored history for sessionID. The boolean is false when
// nothing is stored, the snapshot is corrupt, or the backend is unavailable.
func (c *Cache) Load(ctx context.Context, sessionID string) (*History, bool) {
	if !c.Available() {
		return nil, false
	}
	ctx, span := c.tracer.Start(ctx, "conversation.load", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	payload, err := c.backend.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("conversation.hit", false))
		return nil, false
	}
	if err != nil {
		c.fail(span, "error retrieving conversation history", sessionID, err)
		return nil, false
	}

	var h History
	if err := json.Unmarshal(payload, &h); err != nil {
		c.fail(span, "error decoding conversation history", sessionID, err)
		return nil, false
	}
	if h.SessionID == "" {
		h.SessionID = sessionID
	}
	if h.Messages == nil {
		h.Messages = []Turn{}
	}
	span.SetAttributes(attribute.Bool("conversation.hit", true), attribute.Int("conversation.turns", len(h.Messages)))
	return &h, true
}

// Save writes the full snapshot of h and restarts its expiry.
func (c *Cache) Save(ctx context.Context, h *History) {
	if !c.Available() {
		return
	}
	ctx, span := c.tracer.Start(ctx, "conversation.save", trace.WithAttributes(
		attribute.String("session.id", h.SessionID),
		attribute.Int("conversation.turns", len(h.Messages)),
	))
	defer span.End()

	payload, err := json.Marshal(h)
	if err != nil {
		c.fail(span, "error encoding conversation history", h.SessionID, err)
		return
	}
	if err := c.backend.Set(ctx, h.SessionID, payload, c.ttl); err != nil {
		c.fail(span, "error saving conversation history", h.SessionID, err)
	}
}

// Delete removes the history for sessionID. Missing entries are fine.
func (c *Cache) Delete(ctx context.Context, sessionID string) {
	if !c.Available() {
		return
	}
	ctx, span := c.tracer.Start(ctx, "conversation.delete", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if err := c.backend.Delete(ctx, sessionID); err != nil {
		c.fail(span, "error clearing session", sessionID, err)
	}
}

func (c *Cache) fail(span trace.Span, msg, sessionID string, err error) {
	c.failures.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	c.logger.Error(msg, "session_id", sessionID, "error", err)
}
