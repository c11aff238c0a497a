// Package chat implements the conversation manager: it turns single-turn
// requests into a multi-turn dialogue with a bounded context window,
// persists transcripts through the conversation cache, and attaches
// best-effort follow-up suggestions to each reply.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/provider"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is the AppContext service key of the Manager.
const ServiceName = "chat.manager"

// ObserverService is the AppContext service key under which an Observer
// may be published before the Manager is built.
const ObserverService = "chat.observer"

// Store is the slice of the conversation cache the manager needs.
// *conversation.Cache implements it.
type Store interface {
	Load(ctx context.Context, sessionID string) (*conversation.History, bool)
	Save(ctx context.Context, h *conversation.History)
	Delete(ctx context.Context, sessionID string)
}

// Request is one inbound chat turn.
type Request struct {
	Message   string
	SessionID string
	UserInfo  map[string]any
}

// Reply is the outcome of a successful turn. Suggestions is nil when none
// could be produced.
type Reply struct {
	Message     string
	SessionID   string
	Suggestions []string
	Timestamp   time.Time
}

// Deps are the collaborators of a Manager. Provider and Store are required.
type Deps struct {
	Provider provider.Provider
	Store    Store
	Logger   *slog.Logger
	Observer Observer

	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Manager orchestrates a turn: session lookup or creation, windowing, the
// completion call, transcript mutation and persistence, then suggestions.
// It is safe for concurrent use.
type Manager struct {
	cfg       Config
	provider  provider.Provider
	store     Store
	suggester *Suggester
	observer  Observer
	logger    *slog.Logger
	tracer    trace.Tracer
	lanes     *laneLock
	now       func() time.Time
	newID     func() string
}

// NewManager builds a Manager from deps and cfg.
func NewManager(deps Deps, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = newSessionID
	}

	m := &Manager{
		cfg:       cfg,
		provider:  deps.Provider,
		store:     deps.Store,
		suggester: NewSuggester(deps.Provider, cfg.Suggestions, deps.Logger, deps.Observer),
		observer:  deps.Observer,
		logger:    deps.Logger,
		tracer:    tracer(),
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if cfg.SerializeSessions {
		m.lanes = newLaneLock()
	}
	return m
}

// Respond runs one turn. It fails only with ErrEmptyMessage or a
// *CompletionError; store and suggestion failures are logged and absorbed.
func (m *Manager) Respond(ctx context.Context, req Request) (Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		m.observer.ObserveTurn(OutcomeInvalid)
		return Reply{}, ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = m.newID()
	}

	ctx, span := m.tracer.Start(ctx, "chat.respond", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Bool("session.new", req.SessionID == ""),
	))
	defer span.End()

	if m.lanes != nil {
		m.lanes.acquire(sessionID)
		defer m.lanes.release(sessionID)
	}

	history, found := m.store.Load(ctx, sessionID)
	if !found {
		// Only a fresh session takes the caller's user_info.
		history = conversation.NewHistory(sessionID, req.UserInfo, m.now())
	}

	content, err := m.complete(ctx, m.buildWindow(history, req.Message))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		m.observer.ObserveTurn(OutcomeCompletionError)
		m.logger.Error("completion failed", "session_id", sessionID, "error", err)
		return Reply{}, &CompletionError{SessionID: sessionID, Err: err}
	}

	now := m.now().UTC()
	history.Append(
		conversation.Turn{Role: conversation.RoleUser, Content: req.Message, Timestamp: now},
		conversation.Turn{Role: conversation.RoleAssistant, Content: content, Timestamp: now},
	)
	history.Touch(now)

	// A finished turn is recorded even if the caller has gone away.
	m.store.Save(context.WithoutCancel(ctx), history)

	suggestions := m.suggester.Suggest(ctx, content, req.UserInfo)

	m.observer.ObserveTurn(OutcomeOK)
	span.SetAttributes(attribute.Int("conversation.turns", len(history.Messages)))

	return Reply{
		Message:     content,
		SessionID:   sessionID,
		Suggestions: suggestions,
		Timestamp:   now,
	}, nil
}

// Clear drops the stored transcript of sessionID. It is idempotent and
// never fails from the caller's point of view.
func (m *Manager) Clear(ctx context.Context, sessionID string) {
	if m.lanes != nil {
		m.lanes.acquire(sessionID)
		defer m.lanes.release(sessionID)
	}
	m.store.Delete(ctx, sessionID)
}

// History returns the stored transcript of sessionID, if any.
func (m *Manager) History(ctx context.Context, sessionID string) (*conversation.History, bool) {
	return m.store.Load(ctx, sessionID)
}

// buildWindow lays out the oracle input: persona, the most recent turns of
// the transcript, then the new user message.
func (m *Manager) buildWindow(h *conversation.History, message string) []provider.Message {
	prior := h.Window(m.cfg.MaxConversationLength)

	msgs := make([]provider.Message, 0, len(prior)+2)
	msgs = append(msgs, provider.Message{Role: provider.MessageRoleSystem, Content: m.cfg.SystemPrompt})
	for _, t := range prior {
		msgs = append(msgs, provider.Message{Role: provider.MessageRole(t.Role), Content: t.Content})
	}
	msgs = append(msgs, provider.Message{Role: provider.MessageRoleUser, Content: message})
	return msgs
}

func (m *Manager) complete(ctx context.Context, msgs []provider.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CompletionTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "chat.completion", trace.WithAttributes(
		attribute.String("llm.model", m.provider.ModelName()),
		attribute.Int("llm.messages", len(msgs)),
	))
	defer span.End()

	start := time.Now()
	resp, err := m.provider.Complete(ctx, provider.CompletionRequest{
		Messages:    msgs,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
	})
	m.observer.ObserveCompletion(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Content, nil
}

func newSessionID() string {
	return uuid.NewString()
}

func tracer() trace.Tracer {
	return otel.Tracer("github.com/flemzord/sage/internal/chat")
}
