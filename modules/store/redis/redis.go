// Package redis implements the store.redis module: conversations kept in
// Redis under "conversation:{session_id}" with a native TTL.
package redis

import (
	"context"
	"log/slog"

	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ conversation.Backend = (*Store)(nil)
	_ core.Configurable    = (*Module)(nil)
	_ core.Provisioner     = (*Module)(nil)
	_ core.Validator       = (*Module)(nil)
	_ core.Stopper         = (*Module)(nil)
)

// Module publishes a Redis-backed Store. Reachability is not checked here:
// an unreachable server degrades the conversation cache instead of failing
// startup.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.redis",
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

	store, err := NewStore(m.config)
	if err != nil {
		return err
	}
	m.store = store

	ctx.RegisterService(conversation.BackendService, conversation.Backend(store))
	m.logger.Info("redis store provisioned", "url", m.config.URL, "key_prefix", m.config.KeyPrefix)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Store returns the backend the module publishes.
func (m *Module) Store() *Store {
	return m.store
}
