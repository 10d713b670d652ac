// Package monitoring exposes Prometheus metrics for batch runs.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arrest_news"

// Metrics holds the counters updated by the pipeline. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordsProcessed prometheus.Counter
	RecordsFailed    prometheus.Counter
	SearchRequests   *prometheus.CounterVec
	SearchThrottles  prometheus.Counter
	FetchResults     *prometheus.CounterVec
	LLMCalls         *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	HitOutcomes      *prometheus.CounterVec
	Checkpoints      *prometheus.CounterVec
	Errors           *prometheus.CounterVec
}

// NewMetrics creates metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Input records marked processed",
		}),
		RecordsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Input records skipped because of a record-level error",
		}),
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search API requests by result",
		}, []string{"result"}),
		SearchThrottles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_throttles_total",
			Help:      "Throttling responses received from the search API",
		}),
		FetchResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Article fetches by status",
		}, []string{"status"}),
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM questions asked by result",
		}, []string{"result"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_cache_lookups_total",
			Help:      "Link cache lookups by result",
		}, []string{"result"}),
		HitOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hit_outcomes_total",
			Help:      "Classified search hits by outcome",
		}, []string{"outcome"}),
		Checkpoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoint operations by kind",
		}, []string{"kind"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Swallowed errors by stage",
		}, []string{"stage"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordProcessed() {
	if m != nil {
		m.RecordsProcessed.Inc()
	}
}

func (m *Metrics) RecordFailed() {
	if m != nil {
		m.RecordsFailed.Inc()
	}
}

func (m *Metrics) Search(result string) {
	if m != nil {
		m.SearchRequests.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Throttled() {
	if m != nil {
		m.SearchThrottles.Inc()
	}
}

func (m *Metrics) Fetch(status string) {
	if m != nil {
		m.FetchResults.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) LLMCall(result string) {
	if m != nil {
		m.LLMCalls.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) CacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Outcome(outcome string) {
	if m != nil {
		m.HitOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Checkpoint(kind string) {
	if m != nil {
		m.Checkpoints.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Error(stage string) {
	if m != nil {
		m.Errors.WithLabelValues(stage).Inc()
	}
}
