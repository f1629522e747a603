// Package observability carries the process-level ambient concerns
// that sit outside the domain model: Prometheus instrumentation and
// PagerDuty paging for invariant violations (spec SPEC_FULL.md §15).
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process's Prometheus registry and the named
// collectors every component reports through, replacing the teacher's
// hand-rolled Counter/Gauge/Histogram types (observability/metrics.go)
// with the real client so /metrics speaks native Prometheus exposition
// format without a bespoke text-format writer.
type Metrics struct {
	registry *prometheus.Registry

	IngestRequestsTotal   *prometheus.CounterVec
	IngestLatencySeconds  prometheus.Histogram
	MetricStoreFailures   prometheus.Counter

	DetectorTickDuration  prometheus.Histogram
	DetectorTicksTotal    prometheus.Counter
	DetectorSkipsTotal    prometheus.Counter
	IncidentsByState      *prometheus.GaugeVec

	EnrichmentAttemptsTotal *prometheus.CounterVec
	EnrichmentRetriesTotal  prometheus.Counter
}

// NewMetrics registers every collector this system reports and
// returns the handle components call into.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		IngestRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_requests_total",
			Help: "Total POST /ingest requests by outcome status code.",
		}, []string{"status"}),
		IngestLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingestor_request_duration_seconds",
			Help:    "Ingest request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		MetricStoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metric_store_increment_failures_total",
			Help: "Best-effort counter increments that failed (spec: never fails the ingest request).",
		}),
		DetectorTickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detector_tick_duration_seconds",
			Help:    "Duration of one Detector evaluation pass over all active rules.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
		DetectorTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detector_ticks_total",
			Help: "Total Detector tick-loop iterations.",
		}),
		DetectorSkipsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detector_rule_evaluation_failures_total",
			Help: "Rule evaluations that errored and were skipped for the tick.",
		}),
		IncidentsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "incidents_by_state",
			Help: "Current incident count per lifecycle state.",
		}, []string{"state"}),
		EnrichmentAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_attempts_total",
			Help: "Total LLM enrichment attempts by outcome.",
		}, []string{"outcome"}),
		EnrichmentRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrichment_retries_total",
			Help: "Total LLM enrichment retry attempts.",
		}),
	}

	reg.MustRegister(
		m.IngestRequestsTotal,
		m.IngestLatencySeconds,
		m.MetricStoreFailures,
		m.DetectorTickDuration,
		m.DetectorTicksTotal,
		m.DetectorSkipsTotal,
		m.IncidentsByState,
		m.EnrichmentAttemptsTotal,
		m.EnrichmentRetriesTotal,
	)

	return m
}

// Handler serves /metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
