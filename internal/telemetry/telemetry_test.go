package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"127.0.0.1:4318", "http://127.0.0.1:4318/v1/traces"} {
		tp, err := newProvider(context.Background(), Config{Endpoint: endpoint, Insecure: true})
		if err != nil {
			t.Fatalf("newProvider(%q): %v", endpoint, err)
		}

		_, span := tp.Tracer("test").Start(context.Background(), "probe")
		if !span.SpanContext().IsSampled() {
			t.Errorf("%q: span should be sampled with the default ratio", endpoint)
		}
		span.End()

		// Nothing listens on the endpoint; shutdown must still return.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = tp.Shutdown(ctx)
		cancel()
	}
}

func TestSampleRatio(t *testing.T) {
	t.Parallel()
	tests := map[float64]float64{0: 1, -1: 1, 2: 1, 0.25: 0.25, 1: 1}
	for in, want := range tests {
		if got := sampleRatio(in); got != want {
			t.Errorf("sampleRatio(%v) = %v, want %v", in, got, want)
		}
	}
}
