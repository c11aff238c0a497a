package openai

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for the OpenAI provider module.
type Config struct {
	APIKey  string            `yaml:"api_key"`
	Model   string            `yaml:"model"`
	BaseURL string            `yaml:"base_url"`
	Timeout string            `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validate.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// validate returns an error if required fields are missing or malformed.
func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider.openai: api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("provider.openai: model is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.openai: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.openai: base_url scheme must be http or https, got %q", u.Scheme)
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("provider.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("provider.openai: timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
