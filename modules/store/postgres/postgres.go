// Package postgres implements the store.postgres module: conversations kept
// in a PostgreSQL table through a pgx connection pool.
package postgres

import (
	"context"
	"log/slog"

	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/cron"
	"github.com/jackc/pgx/v5/pgxpool"
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

// Module owns the pool and the prune schedule. The table is created on
// Start so that an unreachable database degrades the service instead of
// failing provisioning.
type Module struct {
	config    Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	store     *Store
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.postgres",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	pool, err := NewPool(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.pool = pool
	m.store = NewStore(pool, m.config.Schema)

	m.scheduler = cron.NewScheduler(ctx.Logger)
	if err := m.scheduler.RegisterJob(&cron.PruneJob{
		Store:        m.store,
		Logger:       ctx.Logger,
		Backend:      "postgres",
		ScheduleExpr: m.config.PruneSchedule,
	}); err != nil {
		pool.Close()
		return err
	}

	ctx.RegisterService(conversation.BackendService, conversation.Backend(m.store))
	m.logger.Info("postgres store provisioned", "schema", m.config.Schema)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if err := m.store.Migrate(context.Background()); err != nil {
		m.logger.Error("postgres migration failed; store will report errors", "error", err)
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	var err error
	if m.scheduler != nil {
		err = m.scheduler.Stop(ctx)
	}
	if m.pool != nil {
		m.pool.Close()
	}
	return err
}

// Store returns the backend the module publishes.
func (m *Module) Store() *Store {
	return m.store
}
