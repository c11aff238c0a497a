package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON body of the liveness endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// handleHealth returns a liveness handler. The process is healthy whenever
// it can answer: a missing conversation store only degrades history.
func (g *Gateway) handleHealth(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Message:   message,
			Timestamp: time.Now().UTC(),
			Version:   g.config.Version,
		})
	}
}
