package chat

import "time"

// Outcome labels the result of a turn or a suggestion call.
type Outcome string

// Turn outcomes.
const (
	OutcomeOK              Outcome = "ok"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeCompletionError Outcome = "completion_error"
)

// Suggestion outcomes.
const (
	SuggestionsOK       Outcome = "ok"
	SuggestionsEmpty    Outcome = "empty"
	SuggestionsError    Outcome = "error"
	SuggestionsDisabled Outcome = "disabled"
)

// Observer receives turn-level events. Implementations must be safe for
// concurrent use; the gateway's Prometheus metrics are the production one.
type Observer interface {
	ObserveTurn(outcome Outcome)
	ObserveCompletion(elapsed time.Duration, err error)
	ObserveSuggestions(outcome Outcome)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) ObserveTurn(Outcome) {}
func (NopObserver) ObserveCompletion(time.Duration, error) {}
func (NopObserver) ObserveSuggestions(Outcome) {}
