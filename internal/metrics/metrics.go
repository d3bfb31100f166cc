// Package metrics holds the Prometheus collectors of an experiment.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeCorrect   = "correct"
	OutcomeMisrouted = "misrouted"
	OutcomeError     = "error"
)

// Metrics holds Prometheus metrics for routing experiments.
type Metrics struct {
	QueriesTotal *prometheus.CounterVec   // Dispatched queries by architecture and outcome
	QueryLatency *prometheus.HistogramVec // End-to-end routing latency
	Hops         *prometheus.HistogramVec // Unique agents touched per query
	LLMRequests  *prometheus.CounterVec   // Model calls by model and outcome

	gatherer prometheus.Gatherer
}

// New creates metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetrics(reg, reg)
}

// NewMetrics creates and registers the collectors with reg. The gatherer is
// used by WriteTextfile and may be nil when no textfile is written.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routebench_queries_total",
		Help: "Total number of routed queries",
	}, []string{"architecture", "outcome"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routebench_query_latency_seconds",
		Help:    "Routing latency per query",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"architecture"})

	hops := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routebench_hops",
		Help:    "Agents traversed per query",
		Buckets: []float64{1, 2, 3, 4, 5},
	}, []string{"architecture"})

	llmRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routebench_llm_requests_total",
		Help: "Total number of model requests",
	}, []string{"model", "outcome"})

	reg.MustRegister(queries)
	reg.MustRegister(latency)
	reg.MustRegister(hops)
	reg.MustRegister(llmRequests)

	return &Metrics{
		QueriesTotal: queries,
		QueryLatency: latency,
		Hops:         hops,
		LLMRequests:  llmRequests,
		gatherer:     gatherer,
	}
}

// ObserveQuery records one routed query.
func (m *Metrics) ObserveQuery(architecture, outcome string, latency time.Duration, hops int) {
	m.QueriesTotal.WithLabelValues(architecture, outcome).Inc()
	m.QueryLatency.WithLabelValues(architecture).Observe(latency.Seconds())
	m.Hops.WithLabelValues(architecture).Observe(float64(hops))
}

// RecordLLMRequest counts one model call.
func (m *Metrics) RecordLLMRequest(model, outcome string) {
	m.LLMRequests.WithLabelValues(model, outcome).Inc()
}

// WriteTextfile writes the gathered metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return fmt.Errorf("metrics: no gatherer configured")
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// QueryOutcome maps a scored query to its outcome label.
func QueryOutcome(correct bool, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case correct:
		return OutcomeCorrect
	default:
		return OutcomeMisrouted
	}
}
