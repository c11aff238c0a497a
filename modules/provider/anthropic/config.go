package anthropic

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	defaultTimeout   = 30 * time.Second
	defaultKeyEnv    = "ANTHROPIC_API_KEY"
)

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	// APIKey takes precedence over the environment variable named by APIKeyEnv.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`

	// MaxTokens applies when a request does not set its own budget; the
	// Messages API requires one.
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultKeyEnv
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider.anthropic: api_key or $%s is required", c.APIKeyEnv)
	}
	if c.MaxTokens < 0 {
		return errors.New("provider.anthropic: max_tokens must not be negative")
	}
	if c.Timeout < 0 {
		return errors.New("provider.anthropic: timeout must not be negative")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("provider.anthropic: base_url %q must be an http(s) URL", c.BaseURL)
		}
	}
	return nil
}
