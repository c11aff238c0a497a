// Package config handles YAML configuration loading, environment variable
// expansion, the environment-only fallback, and structural validation for sage.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Environment names the deployment ("development", "production", ...).
	// It selects the default log format and is reported at startup.
	Environment string `yaml:"environment"`

	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Chat      ChatConfig      `yaml:"chat"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.redis").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Empty selects text in development
	// and json everywhere else.
	Format string `yaml:"format"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector endpoint (host:port or URL).
	// Tracing is disabled when empty.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of traces to sample. Zero means 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ChatConfig tunes the conversation manager. Zero values mean "use the
// default" and are resolved by the chat package.
type ChatConfig struct {
	// MaxConversationLength is the number of prior turns sent to the oracle.
	MaxConversationLength int `yaml:"max_conversation_length"`

	// SessionTTL is the sliding expiry of a stored conversation.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// SystemPrompt is the persona instruction placed first in every window.
	SystemPrompt string `yaml:"system_prompt"`

	Temperature       *float64      `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	CompletionTimeout time.Duration `yaml:"completion_timeout"`

	// SerializeSessions makes concurrent turns of one session run one at a time.
	SerializeSessions bool `yaml:"serialize_sessions"`

	// ProbeProvider sends a one-token completion at startup when the
	// provider supports health checks. A failed probe is only logged.
	ProbeProvider bool `yaml:"probe_provider"`

	Suggestions SuggestionsConfig `yaml:"suggestions"`
}

// SuggestionsConfig tunes the follow-up question generator.
type SuggestionsConfig struct {
	Disabled    bool          `yaml:"disabled"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// IsDevelopment reports whether the configured environment is development.
// An empty environment counts as development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}
