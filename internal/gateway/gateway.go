// Package gateway implements the gateway.http module: the HTTP and
// WebSocket surface of the chat service.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/flemzord/sage/internal/chat"
	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
	_ ChatService       = (*chat.Manager)(nil)
)

// ChatService is what the gateway needs from the conversation manager.
type ChatService interface {
	Respond(ctx context.Context, req chat.Request) (chat.Reply, error)
	Clear(ctx context.Context, sessionID string)
	History(ctx context.Context, sessionID string) (*conversation.History, bool)
}

// VersionService is the AppContext key of the build version string. When
// registered, it replaces DefaultVersion on the liveness endpoints unless
// the module config sets a version explicitly.
const VersionService = "app.version"

// StoreStatus reports conversation store health for metrics.
// *conversation.Cache implements it.
type StoreStatus interface {
	Available() bool
	Failures() int64
}

// Gateway is the HTTP gateway module. It is a leaf module: it consumes the
// chat service and publishes nothing but its metrics observer.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	server  *http.Server
	metrics *Metrics

	explicitVersion bool

	// Resolved at Start() via the service registry.
	chat  ChatService
	store StoreStatus
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.explicitVersion = g.config.Version != ""
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The metrics are published as the
// chat observer so the manager built afterwards reports into them.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	if !g.explicitVersion {
		if v, ok := ctx.Service(VersionService); ok {
			if s, ok := v.(string); ok && s != "" {
				g.config.Version = s
			}
		}
	}
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()

	ctx.RegisterService(chat.ObserverService, chat.Observer(g.metrics))
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves the chat service and starts
// the HTTP server.
func (g *Gateway) Start() error {
	svc, ok := g.appCtx.Service(chat.ServiceName)
	if !ok {
		return errors.New("gateway: chat service not registered")
	}
	cs, ok := svc.(ChatService)
	if !ok {
		return errors.New("gateway: chat service has unexpected type")
	}
	g.chat = cs

	if svc, ok := g.appCtx.Service(conversation.CacheService); ok {
		if st, ok := svc.(StoreStatus); ok {
			g.store = st
			g.metrics.WatchStore(st)
		}
	}

	g.server = &http.Server{
		Addr:         g.config.Address,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Address)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Metrics returns the gateway's metrics.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}
