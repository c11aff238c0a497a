// Package memory implements the store.memory module: an in-process
// conversation backend. Entries do not survive a restart.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/cron"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ conversation.Backend = (*Store)(nil)
	_ cron.Pruner          = (*Store)(nil)
	_ core.Configurable    = (*Module)(nil)
	_ core.Provisioner     = (*Module)(nil)
	_ core.Validator       = (*Module)(nil)
	_ core.Starter         = (*Module)(nil)
	_ core.Stopper         = (*Module)(nil)
)

// Config holds the store.memory configuration.
type Config struct {
	// PruneSchedule is the cron expression for sweeping expired entries.
	// Defaults to cron.DefaultPruneSchedule.
	PruneSchedule string `yaml:"prune_schedule"`
}

// Module publishes a Store as the conversation backend.
type Module struct {
	config    Config
	logger    *slog.Logger
	store     *Store
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.memory",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.store = New()

	m.scheduler = cron.NewScheduler(ctx.Logger)
	if err := m.scheduler.RegisterJob(&cron.PruneJob{
		Store:        m.store,
		Logger:       ctx.Logger,
		Backend:      "memory",
		ScheduleExpr: m.config.PruneSchedule,
	}); err != nil {
		return err
	}

	ctx.RegisterService(conversation.BackendService, conversation.Backend(m.store))
	m.logger.Info("memory store provisioned")
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Store returns the backend the module publishes.
func (m *Module) Store() *Store {
	return m.store
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Store is a mutex-guarded map with per-entry expiry. Expired entries are
// invisible to Get and are removed by PruneExpired.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty Store using the wall clock.
func New() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// NewWithClock returns an empty Store that reads time from now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{entries: make(map[string]entry), now: now}
}

// Get implements conversation.Backend.
func (s *Store) Get(ctx context.Context, sessionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, conversation.ErrNotFound
	}
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, nil
}

// Set implements conversation.Backend.
func (s *Store) Set(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)

	s.mu.Lock()
	s.entries[sessionID] = entry{payload: buf, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete implements conversation.Backend.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// Ping implements conversation.Backend.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// PruneExpired implements cron.Pruner.
func (s *Store) PruneExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
