package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/sage/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, checks that every referenced module ID
// exists in the registry, and enforces the module topology sage needs:
// exactly one completion provider and at most one conversation store.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	switch providers := ModulesInNamespace(cfg, "provider"); len(providers) {
	case 1:
	case 0:
		errs = append(errs, errors.New("config: a provider module is required"))
	default:
		errs = append(errs, fmt.Errorf("config: exactly one provider module is allowed, got %s", strings.Join(providers, ", ")))
	}

	if stores := ModulesInNamespace(cfg, "store"); len(stores) > 1 {
		errs = append(errs, fmt.Errorf("config: at most one store module is allowed, got %s", strings.Join(stores, ", ")))
	}

	errs = append(errs, validateLogging(cfg.Logging)...)
	errs = append(errs, validateChat(cfg.Chat)...)

	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio must be within [0, 1], got %v", r))
	}

	return errors.Join(errs...)
}

func validateLogging(l LoggingConfig) []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", l.Level))
	}
	switch l.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: logging.format %q is not one of text, json", l.Format))
	}
	return errs
}

func validateChat(c ChatConfig) []error {
	var errs []error
	if c.MaxConversationLength < 0 {
		errs = append(errs, errors.New("config: chat.max_conversation_length must not be negative"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("config: chat.session_ttl must not be negative"))
	}
	if c.MaxTokens < 0 || c.Suggestions.MaxTokens < 0 {
		errs = append(errs, errors.New("config: chat max_tokens must not be negative"))
	}
	if c.CompletionTimeout < 0 || c.Suggestions.Timeout < 0 {
		errs = append(errs, errors.New("config: chat timeouts must not be negative"))
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("config: chat.temperature must be within [0, 2], got %v", *t))
	}
	if t := c.Suggestions.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("config: chat.suggestions.temperature must be within [0, 2], got %v", *t))
	}
	return errs
}
