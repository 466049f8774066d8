// Package metrics exposes Prometheus instrumentation for the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modelgate"

// Outcome labels.
const (
	OutcomeOK = "ok"
)

// Metrics holds every collector registered by the gateway. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	PromptTokens     prometheus.Counter
	CompletionTokens prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	SessionState     *prometheus.GaugeVec
	EngineInit       prometheus.Histogram
}

// New registers the gateway collectors plus the Go and process collectors on
// a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome",
		}, []string{"outcome"}),
		PromptTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens consumed by successful completions",
		}),
		CompletionTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_tokens_total",
			Help:      "Completion tokens generated by successful completions",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_request_duration_seconds",
			Help:      "Wall time of chat requests, engine start through aggregation",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"outcome"}),
		SessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_session_state",
			Help:      "1 for the current engine session state, 0 otherwise",
		}, []string{"state"}),
		EngineInit: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_init_duration_seconds",
			Help:      "Time taken to load the inference engine",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// ObserveRequest records one finished chat request. outcome is OutcomeOK or
// an error kind.
func (m *Metrics) ObserveRequest(outcome string, took time.Duration, promptTokens, completionTokens int) {
	m.Requests.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(outcome).Observe(took.Seconds())
	if outcome == OutcomeOK {
		m.PromptTokens.Add(float64(promptTokens))
		m.CompletionTokens.Add(float64(completionTokens))
	}
}

// SetSessionState marks state as current among all known states.
func (m *Metrics) SetSessionState(state string, known ...string) {
	for _, s := range known {
		m.SessionState.WithLabelValues(s).Set(0)
	}
	m.SessionState.WithLabelValues(state).Set(1)
}

// ObserveEngineInit records how long the engine took to load.
func (m *Metrics) ObserveEngineInit(took time.Duration) {
	m.EngineInit.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
