package postgres

import (
	"errors"
	"fmt"
	"regexp"
)

const defaultSchema = "public"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds the store.postgres configuration.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string `yaml:"dsn"`

	// Schema holds the conversations table. Defaults to "public".
	Schema string `yaml:"schema"`

	// MaxConns caps the pool size when positive.
	MaxConns int32 `yaml:"max_conns"`

	// PruneSchedule is the cron expression for deleting expired rows.
	PruneSchedule string `yaml:"prune_schedule"`
}

func (c *Config) defaults() {
	if c.Schema == "" {
		c.Schema = defaultSchema
	}
}

func (c *Config) validate() error {
	if c.DSN == "" {
		return errors.New("postgres: dsn is required")
	}
	if !identRe.MatchString(c.Schema) {
		return fmt.Errorf("postgres: invalid schema identifier %q", c.Schema)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("postgres: max_conns must be non-negative, got %d", c.MaxConns)
	}
	return nil
}
