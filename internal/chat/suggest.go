package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flemzord/sage/internal/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const suggestionSystemPrompt = "You are a helpful assistant that generates question suggestions."

const suggestionPromptTemplate = `Previous response: %s

Based on this response, suggest 3 short follow-up questions the user might ask next.
Each question must be simple, easy for seniors to understand, and at most 20 characters.
Respond with a JSON array of strings only, for example: ["question 1", "question 2", "question 3"]`

// errNoSuggestions marks a well-formed reply that held no usable entries.
var errNoSuggestions = errors.New("no suggestions in reply")

// Suggester derives follow-up questions from the latest assistant reply with
// a second oracle call. It is best-effort: every failure yields nil.
type Suggester struct {
	provider provider.Provider
	cfg      SuggestionConfig
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// NewSuggester builds a Suggester. observer may be nil.
func NewSuggester(p provider.Provider, cfg SuggestionConfig, logger *slog.Logger, observer Observer) *Suggester {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Suggester{
		provider: p,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		observer: observer,
		tracer:   tracer(),
	}
}

// Suggest returns up to MaxSuggestions short questions, or nil.
func (s *Suggester) Suggest(ctx context.Context, lastReply string, userInfo map[string]any) []string {
	if s.cfg.Disabled {
		s.observer.ObserveSuggestions(SuggestionsDisabled)
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "chat.suggest")
	defer span.End()

	out, err := s.generate(ctx, lastReply, userInfo)
	switch {
	case errors.Is(err, errNoSuggestions):
		s.observer.ObserveSuggestions(SuggestionsEmpty)
		return nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggestions failed")
		s.logger.Warn("error generating suggestions", "error", err)
		s.observer.ObserveSuggestions(SuggestionsError)
		return nil
	}
	span.SetAttributes(attribute.Int("chat.suggestions", len(out)))
	s.observer.ObserveSuggestions(SuggestionsOK)
	return out
}

func (s *Suggester) generate(ctx context.Context, lastReply string, userInfo map[string]any) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.provider.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: provider.MessageRoleSystem, Content: suggestionSystemPrompt},
			{Role: provider.MessageRoleUser, Content: suggestionPrompt(lastReply, userInfo)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(resp.Content)
}

func suggestionPrompt(lastReply string, userInfo map[string]any) string {
	prompt := fmt.Sprintf(suggestionPromptTemplate, lastReply)
	if len(userInfo) == 0 {
		return prompt
	}
	info, err := json.Marshal(userInfo)
	if err != nil {
		return prompt
	}
	return prompt + "\n\nUser information: " + string(info)
}

// ParseSuggestions decodes an oracle reply holding a JSON array of strings,
// optionally inside a Markdown code fence. Entries are trimmed, blanks are
// dropped and the list is cut to MaxSuggestions.
func ParseSuggestions(raw string) ([]string, error) {
	text := stripCodeFence(strings.TrimSpace(raw))

	var items []string
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("parsing suggestions: %w", err)
	}

	out := make([]string, 0, MaxSuggestions)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == MaxSuggestions {
			break
		}
	}
	if len(out) == 0 {
		return nil, errNoSuggestions
	}
	return out, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
