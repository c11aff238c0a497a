// Package sqlite implements the store.sqlite module: a conversation backend
// persisted in a local SQLite file via modernc.org/sqlite (pure Go, no CGO).
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

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

// Module owns the database handle and the prune schedule.
type Module struct {
	config    Config
	logger    *slog.Logger
	store     *Store
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	store, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.store = store

	m.scheduler = cron.NewScheduler(ctx.Logger)
	if err := m.scheduler.RegisterJob(&cron.PruneJob{
		Store:        store,
		Logger:       ctx.Logger,
		Backend:      "sqlite",
		ScheduleExpr: m.config.PruneSchedule,
	}); err != nil {
		_ = store.Close()
		return err
	}

	ctx.RegisterService(conversation.BackendService, conversation.Backend(store))

	m.logger.Info("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.store.Ping(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("sqlite store stopping")
	var err error
	if m.scheduler != nil {
		err = m.scheduler.Stop(ctx)
	}
	if m.store != nil {
		if cerr := m.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Store returns the backend the module publishes.
func (m *Module) Store() *Store {
	return m.store
}
