package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/sage/internal/chat"
	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/conversation/conversationtest"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/provider"
	"github.com/flemzord/sage/internal/provider/providertest"
	"gopkg.in/yaml.v3"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Gateway{}).ModuleInfo()
	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Address != "0.0.0.0:8000" {
		t.Errorf("Address = %q, want default", g.config.Address)
	}
	if len(g.config.AllowedOrigins) != 1 || g.config.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", g.config.AllowedOrigins)
	}
	if g.config.Version != DefaultVersion {
		t.Errorf("Version = %q", g.config.Version)
	}
	if g.config.WriteTimeout != 60*time.Second {
		t.Errorf("WriteTimeout = %v, want 60s", g.config.WriteTimeout)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
address: "127.0.0.1:9090"
allowed_origins: ["https://sage.example", "http://localhost:3000"]
version: "2.3.0"
read_timeout: 5s
shutdown_timeout: 10s
`)
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if g.config.Address != "127.0.0.1:9090" {
		t.Errorf("Address = %q", g.config.Address)
	}
	if len(g.config.AllowedOrigins) != 2 || g.config.allowAnyOrigin() {
		t.Errorf("AllowedOrigins = %v", g.config.AllowedOrigins)
	}
	if g.config.ReadTimeout != 5*time.Second || g.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("timeouts = %v, %v", g.config.ReadTimeout, g.config.ShutdownTimeout)
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	good := &Gateway{config: Config{Address: "127.0.0.1:8000"}}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate(good): %v", err)
	}
	bad := &Gateway{config: Config{Address: "not an address"}}
	if err := bad.Validate(); err == nil {
		t.Error("Validate(bad) should fail")
	}
}

func TestGateway_ProvisionRegistersObserver(t *testing.T) {
	t.Parallel()

	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	g := &Gateway{}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	svc, ok := appCtx.Service(chat.ObserverService)
	if !ok {
		t.Fatal("observer not registered")
	}
	if svc.(chat.Observer) != chat.Observer(g.Metrics()) {
		t.Error("registered observer is not the gateway metrics")
	}
}

func TestGateway_StartWithoutChatService(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Provision(core.NewAppContext(discardLogger(), t.TempDir())); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(); err == nil {
		t.Fatal("Start should fail without a chat service")
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	g := &Gateway{config: Config{Address: freeAddr(t)}}
	if err := g.Provision(appCtx); err != nil {
		t.Fatal(err)
	}
	f := newChatFixture(t)
	appCtx.RegisterService(chat.ServiceName, f.manager)
	appCtx.RegisterService(conversation.CacheService, f.cache)

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp := doGet(t, "http://"+g.config.Address+"/health")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type chatFixture struct {
	provider *providertest.MockProvider
	backend  *conversationtest.Backend
	cache    *conversation.Cache
	manager  *chat.Manager
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	return newObservedChatFixture(t, nil)
}

// newObservedChatFixture reports chat events to obs when it is non-nil.
func newObservedChatFixture(t *testing.T, obs chat.Observer) *chatFixture {
	t.Helper()
	p := &providertest.MockProvider{CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
		if req.MaxTokens == chat.DefaultSuggestionMaxTokens {
			return provider.CompletionResponse{Content: `["More?","Why?"]`}, nil
		}
		return provider.CompletionResponse{Content: "4"}, nil
	}}
	b := conversationtest.NewBackend()
	cache := conversation.NewCache(b, time.Minute, discardLogger())
	return &chatFixture{
		provider: p,
		backend:  b,
		cache:    cache,
		manager: chat.NewManager(chat.Deps{
			Provider: p,
			Store:    cache,
			Logger:   discardLogger(),
			Observer: obs,
		}, chat.Config{}),
	}
}

// newTestServer serves the gateway router over httptest with a real
// chat manager behind it.
func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *Gateway, *chatFixture) {
	t.Helper()
	cfg.defaults()
	metrics := NewMetrics()
	f := newObservedChatFixture(t, metrics)
	g := &Gateway{
		config:  cfg,
		appCtx:  core.NewAppContext(discardLogger(), t.TempDir()),
		logger:  discardLogger(),
		metrics: metrics,
		chat:    f.manager,
		store:   f.cache,
	}
	g.metrics.WatchStore(f.cache)
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv, g, f
}

func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

func doGet(t *testing.T, url string) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodGet, url, nil)
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}

func TestGateway_ProvisionBuildVersion(t *testing.T) {
	t.Parallel()

	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	appCtx.RegisterService(VersionService, "0.4.1")

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if g.config.Version != "0.4.1" {
		t.Errorf("Version = %q, want build version", g.config.Version)
	}

	pinned := &Gateway{}
	if err := pinned.Configure(mustYAMLNode(t, `version: "2.0.0"`)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := pinned.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if pinned.config.Version != "2.0.0" {
		t.Errorf("Version = %q, configured version should win", pinned.config.Version)
	}
}
