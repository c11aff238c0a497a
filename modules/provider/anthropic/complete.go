package anthropic

import (
	"context"
	"fmt"

	"github.com/flemzord/sage/internal/provider"
)

// Complete implements provider.Provider.
func (a *Anthropic) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	msg, err := a.client.Messages.New(ctx, convertRequest(req, a.config, a.logger))
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}

	out := convertResponse(msg)
	if out.Content == "" {
		return provider.CompletionResponse{}, fmt.Errorf("%w: no text block (stop_reason %q)", provider.ErrEmptyResponse, msg.StopReason)
	}
	return out, nil
}
