package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/sage/internal/chat"
	"github.com/flemzord/sage/internal/config"
	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/provider"
)

// connectTimeout bounds the startup probes of the store and the provider.
const connectTimeout = 5 * time.Second

// wireChat builds the conversation cache over whichever store module
// registered a backend, probes it, and publishes the chat manager. Must be
// called after LoadModules and before Start.
func wireChat(ctx context.Context, appCtx *core.AppContext, cfg *config.Config, logger *slog.Logger) error {
	var backend conversation.Backend
	if svc, ok := appCtx.Service(conversation.BackendService); ok {
		b, ok := svc.(conversation.Backend)
		if !ok {
			return errors.New("app: conversation backend has unexpected type")
		}
		backend = b
	}

	cache := conversation.NewCache(backend, cfg.Chat.SessionTTL, logger.With("component", "conversation"))
	appCtx.RegisterService(conversation.CacheService, cache)

	probeCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := cache.Connect(probeCtx); err != nil {
		logger.Warn("conversation store unavailable", "error", err)
	}

	svc, ok := appCtx.Service(provider.ServiceName)
	if !ok {
		return errors.New("app: no completion provider registered")
	}
	p, ok := svc.(provider.Provider)
	if !ok {
		return errors.New("app: completion provider has unexpected type")
	}

	if hc, ok := p.(provider.HealthChecker); ok && cfg.Chat.ProbeProvider {
		probeCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := hc.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			logger.Warn("completion provider probe failed", "model", p.ModelName(), "error", err)
		} else {
			logger.Info("completion provider reachable", "model", p.ModelName())
		}
	}

	var observer chat.Observer
	if svc, ok := appCtx.Service(chat.ObserverService); ok {
		observer, _ = svc.(chat.Observer)
	}

	manager := chat.NewManager(chat.Deps{
		Provider: p,
		Store:    cache,
		Logger:   logger.With("component", "chat"),
		Observer: observer,
	}, chatConfig(cfg.Chat))
	appCtx.RegisterService(chat.ServiceName, manager)

	logger.Info("chat manager wired",
		"store", backend != nil && cache.Available(),
		"session_ttl", cache.TTL(),
	)
	return nil
}

func chatConfig(c config.ChatConfig) chat.Config {
	return chat.Config{
		MaxConversationLength: c.MaxConversationLength,
		SystemPrompt:          c.SystemPrompt,
		Temperature:           c.Temperature,
		MaxTokens:             c.MaxTokens,
		CompletionTimeout:     c.CompletionTimeout,
		SerializeSessions:     c.SerializeSessions,
		Suggestions: chat.SuggestionConfig{
			Disabled:    c.Suggestions.Disabled,
			Temperature: c.Suggestions.Temperature,
			MaxTokens:   c.Suggestions.MaxTokens,
			Timeout:     c.Suggestions.Timeout,
		},
	}
}
