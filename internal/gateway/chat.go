package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/sage/internal/chat"
	"github.com/go-chi/chi/v5"
)

// ChatRequest is the body of POST /api/v1/chat and of each WebSocket frame.
type ChatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	UserInfo  map[string]any `json:"user_info,omitempty"`
}

// ChatResponse is a successful turn. Suggestions is null when none were
// produced.
type ChatResponse struct {
	Message     string    `json:"message"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	Suggestions []string  `json:"suggestions"`
}

// ClearResponse is the body of DELETE /api/v1/chat/{session_id}.
type ClearResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// respond runs one turn for either transport.
func (g *Gateway) respond(ctx context.Context, req ChatRequest) (ChatResponse, *apiError) {
	reply, err := g.chat.Respond(ctx, chat.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserInfo:  req.UserInfo,
	})
	if err != nil {
		apiErr := toAPIError(err)
		if apiErr.status >= http.StatusInternalServerError {
			g.logger.Error("chat error", "session_id", req.SessionID, "error", err)
		}
		return ChatResponse{}, apiErr
	}
	return ChatResponse{
		Message:     reply.Message,
		SessionID:   reply.SessionID,
		Timestamp:   reply.Timestamp,
		Suggestions: reply.Suggestions,
	}, nil
}

func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, &apiError{status: http.StatusBadRequest, msg: msgInvalidBody, detail: err.Error()})
			return
		}

		resp, apiErr := g.respond(r.Context(), req)
		if apiErr != nil {
			writeError(w, apiErr)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (g *Gateway) handleClear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		g.chat.Clear(r.Context(), sessionID)
		writeJSON(w, http.StatusOK, ClearResponse{
			Message:   "conversation history cleared",
			SessionID: sessionID,
		})
	}
}

func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, ok := g.chat.History(r.Context(), chi.URLParam(r, "session_id"))
		if !ok {
			writeError(w, &apiError{status: http.StatusNotFound, msg: msgHistoryNotFound})
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}
