package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ModelMetrics tracks remote model call duration and token spend, the cost
// signals for per-document-type observability.
type ModelMetrics struct {
	registry *prometheus.Registry

	callTotal    *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
}

func NewModelMetrics(service string) *ModelMetrics {
	registry := prometheus.NewRegistry()

	callTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rexeli",
			Subsystem: "llm",
			Name:      "call_total",
			Help:      "Total model invocations by operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rexeli",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Model invocation duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "operation"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rexeli",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage reported by the provider.",
		},
		[]string{"service", "operation", "kind"},
	)

	registry.MustRegister(callTotal, callDuration, tokensTotal)

	return &ModelMetrics{
		registry:     registry,
		callTotal:    callTotal,
		callDuration: callDuration,
		tokensTotal:  tokensTotal,
	}
}

func (m *ModelMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ModelMetrics) ObserveCall(service, operation, status string, seconds float64) {
	m.callTotal.WithLabelValues(service, operation, status).Inc()
	m.callDuration.WithLabelValues(service, operation).Observe(seconds)
}

func (m *ModelMetrics) AddTokens(service, operation string, prompt, completion int) {
	m.tokensTotal.WithLabelValues(service, operation, "prompt").Add(float64(prompt))
	m.tokensTotal.WithLabelValues(service, operation, "completion").Add(float64(completion))
}
