package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(traceContext(otel.GetTextMapPropagator()))
	r.Use(requestLogging(g.logger))
	r.Use(g.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Get("/", g.handleHealth("SAGE Chatbot API is running"))
	r.Get("/health", g.handleHealth("All systems operational"))
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Post("/", g.handleChat())
		r.Get("/ws", g.handleChatWS())
		r.Delete("/{session_id}", g.handleClear())
		r.Get("/{session_id}/history", g.handleHistory())
	})

	return r
}
