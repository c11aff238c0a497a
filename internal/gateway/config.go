package gateway

import (
	"errors"
	"net"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	// Address is the listen address. Defaults to 0.0.0.0:8000.
	Address string `yaml:"address"`

	// AllowedOrigins lists the origins allowed by CORS and the WebSocket
	// origin check. "*" allows any origin. Defaults to ["*"].
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Version is reported by the liveness endpoints. Defaults to 1.0.0.
	Version string `yaml:"version"`

	// MaxBodyBytes caps request bodies and WebSocket frames.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultVersion is reported when no version is configured.
const DefaultVersion = "1.0.0"

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Address == "" {
		c.Address = "0.0.0.0:8000"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	// Covers the completion timeout plus the suggestion call.
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if _, err := net.ResolveTCPAddr("tcp", c.Address); err != nil {
		return errors.New("gateway: invalid address: " + c.Address)
	}
	return nil
}

// allowAnyOrigin reports whether "*" is among the allowed origins.
func (c *Config) allowAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
