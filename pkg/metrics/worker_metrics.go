// Package metrics provides Prometheus metrics for the parser service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors of the parse pipeline.
type Metrics struct {
	// Parse pipeline
	ParsedTotal       *prometheus.CounterVec
	ParseDuration     *prometheus.HistogramVec
	ExtractionsTotal  *prometheus.CounterVec
	IntentsTotal      *prometheus.CounterVec
	SinkFailuresTotal *prometheus.CounterVec

	// Worker / poller
	JobsTotal     *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	FetchedTotal  *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec
	HTTPDurations *prometheus.HistogramVec
}

// Get returns the process-wide metrics, registering them on first use.
//
// Metrics:
//   - mailparser_parsed_total{source,status}
//   - mailparser_parse_duration_seconds{step}
//   - mailparser_extractions_total{method}
//   - mailparser_intents_total{intent,stage}
//   - mailparser_sink_failures_total{sink}
//   - mailparser_jobs_total{type,status}
//   - mailparser_queue_depth
//   - mailparser_fetched_total{source}
//   - mailparser_breaker_state{name} (0 closed, 1 half-open, 2 open)
//   - mailparser_http_request_duration_seconds{route,status}
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ParsedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mailparser_parsed_total",
					Help: "Total number of emails run through the parse pipeline",
				},
				[]string{"source", "status"},
			),
			ParseDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mailparser_parse_duration_seconds",
					Help:    "Duration of parse pipeline steps in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
				},
				[]string{"step"},
			),
			ExtractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mailparser_extractions_total",
					Help: "Contact extractions by extractor",
				},
				[]string{"method"},
			),
			IntentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mailparser_intents_total",
					Help: "Intent decisions by intent and deciding stage",
				},
				[]string{"intent", "stage"},
			),
			SinkFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mailparser_sink_failures_total",
					Help: "Failed writes to a result sink",
				},
				[]string{"sink"},
			),
			JobsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mailparser_jobs_total",
					Help: "Worker jobs by type and final status",
				},
				[]string{"type", "status"},
			),
			QueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "mailparser_queue_depth",
					Help: "Jobs waiting in the worker queue",
				},
			),
			FetchedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mailparser_fetched_total",
					Help: "Messages fetched from a mailbox source",
				},
				[]string{"source"},
			),
			BreakerState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "mailparser_breaker_state",
					Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
				},
				[]string{"name"},
			),
			HTTPDurations: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mailparser_http_request_duration_seconds",
					Help:    "HTTP request latency by route",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route", "status"},
			),
		}
	})
	return globalMetrics
}

// ObserveStep records the duration of one pipeline step since start.
func (m *Metrics) ObserveStep(step string, start time.Time) {
	m.ParseDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// BreakerListener updates the breaker gauge on every transition.
func (m *Metrics) BreakerListener(name string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}
