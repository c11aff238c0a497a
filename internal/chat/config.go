package chat

import (
	"time"

	"github.com/flemzord/sage/internal/provider"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxConversationLength = 20
	DefaultTemperature           = 0.7
	DefaultMaxTokens             = 500
	DefaultCompletionTimeout     = 30 * time.Second

	DefaultSuggestionTemperature = 0.8
	DefaultSuggestionMaxTokens   = 200
	DefaultSuggestionTimeout     = 15 * time.Second

	// MaxSuggestions caps the follow-up list returned with a reply.
	MaxSuggestions = 3
)

// DefaultSystemPrompt is the persona placed first in every completion window.
const DefaultSystemPrompt = `You are SAGE (Smart Assistive Guidance & Engagement), a friendly AI assistant for seniors.

Follow these principles:
1. Speak politely and warmly, with respect.
2. Avoid technical jargon and use plain, everyday words.
3. Explain one step at a time and keep answers short and clear.
4. Give concrete examples when they help.
5. When explaining how to use a phone or a computer, walk through it step by step.
6. Check that the user understood and offer to explain again.`

// Config tunes the Manager. Zero values select the defaults above.
type Config struct {
	// MaxConversationLength is how many prior turns are sent to the oracle.
	MaxConversationLength int
	SystemPrompt          string
	Temperature           *float64
	MaxTokens             int
	CompletionTimeout     time.Duration

	// SerializeSessions runs concurrent turns of one session one at a time.
	// Off, concurrent turns race and the last save wins.
	SerializeSessions bool

	Suggestions SuggestionConfig
}

// SuggestionConfig tunes the Suggester.
type SuggestionConfig struct {
	Disabled    bool
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConversationLength <= 0 {
		c.MaxConversationLength = DefaultMaxConversationLength
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Temperature == nil {
		c.Temperature = provider.Float64(DefaultTemperature)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = DefaultCompletionTimeout
	}
	c.Suggestions = c.Suggestions.withDefaults()
	return c
}

func (c SuggestionConfig) withDefaults() SuggestionConfig {
	if c.Temperature == nil {
		c.Temperature = provider.Float64(DefaultSuggestionTemperature)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultSuggestionMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultSuggestionTimeout
	}
	return c
}
