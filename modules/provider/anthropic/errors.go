package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/sage/internal/provider"
)

// mapError converts an SDK error into the provider sentinels. Context
// errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Error())
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrAuthentication, apiErr.Error())
	case http.StatusBadRequest:
		if isContextLengthError(apiErr.RawJSON()) {
			return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Error())
		}
		return fmt.Errorf("anthropic: bad request: %w", err)
	}
	if apiErr.StatusCode >= 500 {
		// 529 is the API's "overloaded" status.
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, apiErr.Error())
	}
	return fmt.Errorf("anthropic: HTTP %d: %w", apiErr.StatusCode, err)
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func isContextLengthError(raw string) bool {
	msg := raw
	var body apiErrorBody
	if err := json.Unmarshal([]byte(raw), &body); err == nil {
		if body.Error.Type != "invalid_request_error" {
			return false
		}
		msg = body.Error.Message
	}
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "context length") ||
		strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "prompt is too long")
}
