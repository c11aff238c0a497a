package redis

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultURL       = "redis://localhost:6379"
	defaultKeyPrefix = "conversation:"
	defaultTimeout   = "5s"
)

// Config holds the store.redis configuration.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string `yaml:"url"`

	// KeyPrefix is prepended to the session id. Defaults to "conversation:".
	KeyPrefix string `yaml:"key_prefix"`

	// Timeout bounds dial, read and write operations. Defaults to "5s".
	Timeout string `yaml:"timeout"`

	// PoolSize overrides the client's connection pool size when positive.
	PoolSize int `yaml:"pool_size"`
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultTimeout)
	}
	return d
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.URL, "redis://") && !strings.HasPrefix(c.URL, "rediss://") {
		return errors.New("redis: url must use the redis:// or rediss:// scheme")
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("redis: invalid timeout %q", c.Timeout)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("redis: pool_size must be non-negative, got %d", c.PoolSize)
	}
	return nil
}
