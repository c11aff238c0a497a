// Package provider defines the contract between the conversation manager and
// a text-completion oracle. Concrete adapters live under modules/provider and
// also implement core.Module for lifecycle management.
package provider

import "context"

// ServiceName is the AppContext service key under which the configured
// provider module publishes itself for the conversation manager.
const ServiceName = "provider"

// Provider is the interface for communicating with an LLM.
type Provider interface {
	// Complete sends an ordered list of role-tagged messages and returns the
	// generated text. Any failure (unreachable, rate limited, malformed or
	// empty result) is returned as an error; no retry happens at this layer.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active probing from the composition root.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
