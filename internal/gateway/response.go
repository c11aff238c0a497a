package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/sage/internal/chat"
)

// ErrorResponse is the JSON body of every error reply. Status is only set
// on WebSocket frames, where there is no HTTP status line.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail,omitempty"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// apiError is an error already mapped to a status code and a public message.
type apiError struct {
	status int
	msg    string
	detail string
}

// Public error messages.
const (
	msgEmptyMessage    = "message is empty"
	msgInvalidBody     = "invalid request body"
	msgChatFailed      = "an error occurred while generating the chatbot response"
	msgHistoryNotFound = "conversation history not found"
)

// toAPIError maps a chat error to its HTTP status. Only validation and
// completion failures ever reach this point.
func toAPIError(err error) *apiError {
	if errors.Is(err, chat.ErrEmptyMessage) {
		return &apiError{status: http.StatusBadRequest, msg: msgEmptyMessage}
	}
	return &apiError{status: http.StatusInternalServerError, msg: msgChatFailed}
}

func (e *apiError) body() ErrorResponse {
	return ErrorResponse{Error: e.msg, Detail: e.detail, Timestamp: time.Now().UTC()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.status, e.body())
}
