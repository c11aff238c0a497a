package chat

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage rejects a turn whose message is blank. No state is touched.
var ErrEmptyMessage = errors.New("chat: message must not be empty")

// CompletionError reports that the oracle failed for a turn. The session's
// stored transcript is left exactly as it was.
type CompletionError struct {
	SessionID string
	Err       error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("chat: completion failed for session %s: %v", e.SessionID, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
