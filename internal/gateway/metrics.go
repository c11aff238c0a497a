package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/sage/internal/chat"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compile-time interface check.
var _ chat.Observer = (*Metrics)(nil)

// Metrics holds the gateway's Prometheus collectors on a private registry.
// It is also the chat.Observer the manager reports turns into.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	turns        *prometheus.CounterVec
	completion   *prometheus.HistogramVec
	suggestions  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sage",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		completion: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sage",
			Name:      "completion_duration_seconds",
			Help:      "Completion oracle latency by result.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"result"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "suggestions_total",
			Help:      "Suggestion generation by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.turns, m.completion, m.suggestions,
	)
	return m
}

// WatchStore exports the conversation store's availability and failure count.
func (m *Metrics) WatchStore(st StoreStatus) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sage",
			Name:      "store_available",
			Help:      "1 when the conversation store is reachable, 0 in degraded mode.",
		}, func() float64 {
			if st.Available() {
				return 1
			}
			return 0
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "sage",
			Name:      "store_failures_total",
			Help:      "Conversation store calls that failed and were absorbed.",
		}, func() float64 { return float64(st.Failures()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency under the matched route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveTurn implements chat.Observer.
func (m *Metrics) ObserveTurn(outcome chat.Outcome) {
	m.turns.WithLabelValues(string(outcome)).Inc()
}

// ObserveCompletion implements chat.Observer.
func (m *Metrics) ObserveCompletion(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.completion.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveSuggestions implements chat.Observer.
func (m *Metrics) ObserveSuggestions(outcome chat.Outcome) {
	m.suggestions.WithLabelValues(string(outcome)).Inc()
}
