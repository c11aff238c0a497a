// Package app is the composition root of the sage binary: it loads the
// configuration, builds the logger and tracer, loads the modules, wires the
// chat manager between them, and runs until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/flemzord/sage/internal/config"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/gateway"
	"github.com/flemzord/sage/internal/security"
	"github.com/flemzord/sage/internal/telemetry"

	// Compiled-in modules.
	_ "github.com/flemzord/sage/modules/provider/anthropic"
	_ "github.com/flemzord/sage/modules/provider/openai"
	_ "github.com/flemzord/sage/modules/store/memory"
	_ "github.com/flemzord/sage/modules/store/postgres"
	_ "github.com/flemzord/sage/modules/store/redis"
	_ "github.com/flemzord/sage/modules/store/sqlite"
)

// ErrNoConfigFile is returned by ResolveConfigPath when no candidate exists.
var ErrNoConfigFile = errors.New("no configuration file found")

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file. If
	// empty, ResolveConfigPath is tried and, failing that, the environment.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts all modules, and blocks until ctx is
// canceled or SIGINT/SIGTERM is received.
func Run(ctx context.Context, params RunParams) error {
	cfg, source, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logger := NewLogger(out, cfg, redactor)
	logger.Info("configuration loaded", "source", source)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ServiceName:    "sage",
		ServiceVersion: params.Version,
		Environment:    cfg.Environment,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.ServiceName, redactor)
	if isRelease(params.Version) {
		appCtx.RegisterService(gateway.VersionService, params.Version)
	}

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	// The chat manager is wired between LoadModules and Start: it needs
	// the provider and store registered at provision, and the gateway
	// resolves it at start.
	if err := wireChat(ctx, appCtx, cfg, logger); err != nil {
		application.Stop()
		return err
	}

	if err := application.Start(); err != nil {
		return err
	}
	logger.Info("SAGE Chatbot API starting up...",
		"environment", envName(cfg),
		"version", params.Version,
	)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("SAGE Chatbot API shutting down...")
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// LoadConfig resolves the configuration source: the explicit path, then the
// standard file locations, then the environment. It returns the config and
// a description of where it came from.
func LoadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	resolved, err := ResolveConfigPath()
	switch {
	case err == nil:
		cfg, err := config.Load(resolved)
		return cfg, resolved, err
	case errors.Is(err, ErrNoConfigFile):
		cfg, err := config.FromEnv()
		return cfg, "environment", err
	default:
		return nil, "", err
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/sage/sage.yaml → ~/.config/sage/sage.yaml → ./sage.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "sage", "sage.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "sage", "sage.yaml"))
	}
	candidates = append(candidates, "sage.yaml")

	for _, path := range candidates {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfigFile, candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/sage if set, otherwise ~/.local/share/sage.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "sage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "sage")
}

// NewLogger builds the process logger: text in development, JSON elsewhere
// unless logging.format says otherwise. Every record passes through the
// redactor.
func NewLogger(w io.Writer, cfg *config.Config, redactor *security.Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Logging.Level)}

	format := cfg.Logging.Format
	if format == "" {
		format = "json"
		if cfg.IsDevelopment() {
			format = "text"
		}
	}

	var inner slog.Handler
	if format == "json" {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ParseLevel maps a configured level name to a slog.Level. Unknown names
// fall back to info; config.Validate rejects them earlier.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envName(cfg *config.Config) string {
	if cfg.Environment == "" {
		return "development"
	}
	return cfg.Environment
}

func isRelease(v string) bool {
	return v != "" && v != "dev"
}
