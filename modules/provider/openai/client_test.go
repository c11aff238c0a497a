package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/sage/internal/provider"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Provider{
		config: Config{
			APIKey:  "sk-test",
			Model:   "gpt-4o-mini",
			BaseURL: srv.URL,
			Headers: map[string]string{"X-Team": "support"},
		},
		client: srv.Client(),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readRequestBody(t *testing.T, r *http.Request) chatRequest {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	return req
}

func choiceBody(content, finish string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	}
}

func TestComplete_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing authorization header")
		}
		if r.Header.Get("X-Team") != "support" {
			t.Error("missing custom header")
		}

		req := readRequestBody(t, r)
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want gpt-4o-mini", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "What is 2+2?" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.MaxTokens != 500 {
			t.Errorf("max_tokens = %d, want 500", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Temperature)
		}

		writeJSON(t, w, choiceBody("4", "stop"))
	})

	p := newTestProvider(t, handler)
	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: provider.MessageRoleSystem, Content: "You are SAGE."},
			{Role: provider.MessageRoleUser, Content: "What is 2+2?"},
		},
		MaxTokens:   500,
		Temperature: provider.Float64(0.7),
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "4" {
		t.Errorf("content = %q, want 4", resp.Content)
	}
	if resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("finish_reason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total_tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestComplete_EmptyResponses(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"no choices", map[string]any{"choices": []any{}}},
		{"blank content", choiceBody("   ", "length")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.body)
			}))
			_, err := p.Complete(context.Background(), provider.CompletionRequest{})
			if !errors.Is(err, provider.ErrEmptyResponse) {
				t.Errorf("error = %v, want ErrEmptyResponse", err)
			}
		})
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	if _, err := p.Complete(context.Background(), provider.CompletionRequest{}); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{"rate limit", 429, `{"error":{"message":"slow down"}}`, provider.ErrRateLimit},
		{"unauthorized", 401, `{"error":{"message":"bad key"}}`, provider.ErrAuthentication},
		{"forbidden", 403, `forbidden`, provider.ErrAuthentication},
		{"context length", 400, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, provider.ErrContextLength},
		{"server error", 500, `{"error":{"message":"internal"}}`, provider.ErrProviderDown},
		{"bad gateway", 502, `upstream`, provider.ErrProviderDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := p.Complete(context.Background(), provider.CompletionRequest{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComplete_OtherClientError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown model"}}`))
	}))

	_, err := p.Complete(context.Background(), provider.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if provider.IsRetryable(err) {
		t.Errorf("400 should not be retryable: %v", err)
	}
}

func TestComplete_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := &Provider{
		config: Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: url},
		client: &http.Client{},
	}
	_, err := p.Complete(context.Background(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("error = %v, want ErrProviderDown", err)
	}
}

func TestComplete_ContextCancellation(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		writeJSON(t, w, choiceBody("late", "stop"))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, provider.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestHealthCheck(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := readRequestBody(t, r)
		if req.MaxTokens != 1 {
			t.Errorf("max_tokens = %d, want 1", req.MaxTokens)
		}
		writeJSON(t, w, choiceBody("", "length"))
	}))

	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}
}

func TestHealthCheck_Unauthorized(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if err := p.HealthCheck(context.Background()); !errors.Is(err, provider.ErrAuthentication) {
		t.Errorf("HealthCheck() error = %v, want ErrAuthentication", err)
	}
}

func TestMapFinishReason(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		in   *string
		want provider.FinishReason
	}{
		{nil, ""},
		{s("stop"), provider.FinishReasonStop},
		{s("length"), provider.FinishReasonLength},
		{s("content_filter"), provider.FinishReasonFiltering},
		{s("other"), provider.FinishReason("other")},
	}
	for _, tt := range tests {
		if got := mapFinishReason(tt.in); got != tt.want {
			t.Errorf("mapFinishReason(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModelName(t *testing.T) {
	p := &Provider{config: Config{Model: "gpt-4o-mini"}}
	if got := p.ModelName(); got != "gpt-4o-mini" {
		t.Errorf("ModelName() = %q, want gpt-4o-mini", got)
	}
}
