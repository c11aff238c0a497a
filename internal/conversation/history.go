// Package conversation holds the conversation data model and the
// best-effort conversation store the chat manager persists transcripts in.
package conversation

import (
	"maps"
	"slices"
	"time"
)

// Role identifies the author of a turn.
type Role string

// Role values, as sent to the completion oracle.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message of a transcript. Turns are appended, never edited.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the transcript of one session. Messages are kept in
// chronological (insertion) order and LastActivity never precedes CreatedAt.
type History struct {
	SessionID    string         `json:"session_id"`
	Messages     []Turn         `json:"messages"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	UserInfo     map[string]any `json:"user_info,omitempty"`
}

// NewHistory starts an empty transcript created at now.
func NewHistory(sessionID string, userInfo map[string]any, now time.Time) *History {
	now = now.UTC()
	return &History{
		SessionID:    sessionID,
		Messages:     []Turn{},
		CreatedAt:    now,
		LastActivity: now,
		UserInfo:     userInfo,
	}
}

// Append adds turns at the end of the transcript.
func (h *History) Append(turns ...Turn) {
	h.Messages = append(h.Messages, turns...)
}

// Touch records activity at now, keeping LastActivity >= CreatedAt.
func (h *History) Touch(now time.Time) {
	now = now.UTC()
	if now.Before(h.CreatedAt) {
		now = h.CreatedAt
	}
	h.LastActivity = now
}

// Window returns a copy of the last n turns, or of every turn when n <= 0
// or the transcript is shorter.
func (h *History) Window(n int) []Turn {
	msgs := h.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return slices.Clone(msgs)
}

// Clone returns a deep-enough copy: the message slice and the top level of
// UserInfo are copied.
func (h *History) Clone() *History {
	cp := *h
	cp.Messages = slices.Clone(h.Messages)
	if h.UserInfo != nil {
		cp.UserInfo = maps.Clone(h.UserInfo)
	}
	return &cp
}
