package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults of the environment-only configuration.
const (
	DefaultHTTPAddr = "0.0.0.0:8000"
	DefaultRedisURL = "redis://localhost:6379"
	DefaultModel    = "gpt-4o-mini"
)

// FromEnv builds a configuration from environment variables alone. It is
// used when no configuration file exists and mirrors the deployment
// surface of the service:
//
//	OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL   completion provider
//	SAGE_PROVIDER, ANTHROPIC_MODEL                  provider selection
//	REDIS_URL                                       conversation store
//	ENVIRONMENT, SAGE_LOG_LEVEL                     process
//	ALLOWED_ORIGINS, SAGE_HTTP_ADDR                 HTTP gateway
//	MAX_CONVERSATION_LENGTH, SESSION_EXPIRE_MINUTES
//	SYSTEM_PROMPT                                   conversation manager
//	OTEL_EXPORTER_OTLP_ENDPOINT                     tracing
//
// REDIS_URL selects the store by scheme (see StoreFromURL). When it is unset
// the local Redis default is used; "none" or an empty value runs without a
// store.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Version:     "1",
		Environment: EnvString("ENVIRONMENT", "development"),
		Logging: LoggingConfig{
			Level: EnvString("SAGE_LOG_LEVEL", "info"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: EnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		Chat: ChatConfig{
			MaxConversationLength: EnvInt("MAX_CONVERSATION_LENGTH", 20),
			SessionTTL:            time.Duration(EnvInt("SESSION_EXPIRE_MINUTES", 30)) * time.Minute,
			SystemPrompt:          EnvString("SYSTEM_PROMPT", ""),
		},
		Modules: make(map[string]yaml.Node),
	}

	providerID, providerCfg, err := providerFromEnv()
	if err != nil {
		return nil, err
	}
	if err := setModule(cfg, providerID, providerCfg); err != nil {
		return nil, err
	}

	redisURL, ok := os.LookupEnv("REDIS_URL")
	if !ok {
		redisURL = DefaultRedisURL
	}
	storeID, storeCfg, err := StoreFromURL(redisURL)
	if err != nil {
		return nil, err
	}
	if storeID != "" {
		if err := setModule(cfg, storeID, storeCfg); err != nil {
			return nil, err
		}
	}

	gatewayCfg := map[string]any{
		"address":         EnvString("SAGE_HTTP_ADDR", DefaultHTTPAddr),
		"allowed_origins": EnvList("ALLOWED_ORIGINS", []string{"*"}),
	}
	if err := setModule(cfg, "gateway.http", gatewayCfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// providerFromEnv selects the completion provider module. SAGE_PROVIDER
// defaults to openai; anthropic reads its key from ANTHROPIC_API_KEY.
func providerFromEnv() (string, map[string]any, error) {
	switch name := strings.ToLower(EnvString("SAGE_PROVIDER", "openai")); name {
	case "openai":
		cfg := map[string]any{
			"api_key": os.Getenv("OPENAI_API_KEY"),
			"model":   EnvString("OPENAI_MODEL", DefaultModel),
		}
		if base := EnvString("OPENAI_BASE_URL", ""); base != "" {
			cfg["base_url"] = base
		}
		return "provider.openai", cfg, nil
	case "anthropic":
		cfg := map[string]any{}
		if model := EnvString("ANTHROPIC_MODEL", ""); model != "" {
			cfg["model"] = model
		}
		return "provider.anthropic", cfg, nil
	default:
		return "", nil, fmt.Errorf("config: unsupported SAGE_PROVIDER %q (openai, anthropic)", name)
	}
}

// StoreFromURL maps a store connection URL to a store module ID and its
// configuration. It returns an empty ID when no store should be used.
//
//	redis://, rediss://        store.redis    {url}
//	postgres://, postgresql:// store.postgres {dsn}
//	sqlite://<path>            store.sqlite   {path}
//	memory://                  store.memory
func StoreFromURL(raw string) (string, map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return "", nil, nil
	}

	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return "", nil, fmt.Errorf("config: store URL %q has no scheme", raw)
	}

	switch strings.ToLower(scheme) {
	case "redis", "rediss":
		return "store.redis", map[string]any{"url": raw}, nil
	case "postgres", "postgresql":
		return "store.postgres", map[string]any{"dsn": raw}, nil
	case "sqlite":
		cfg := map[string]any{}
		if rest != "" {
			cfg["path"] = rest
		}
		return "store.sqlite", cfg, nil
	case "memory":
		return "store.memory", map[string]any{}, nil
	default:
		return "", nil, fmt.Errorf("config: unsupported store scheme %q", scheme)
	}
}

func setModule(cfg *Config, id string, v map[string]any) error {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return fmt.Errorf("config: encoding %s: %w", id, err)
	}
	cfg.Modules[id] = node
	return nil
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// EnvInt reads a positive int env var with a default.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EnvList reads a comma-separated env var, trimming entries and dropping
// blanks. Falls back to def when nothing remains.
func EnvList(key string, def []string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
