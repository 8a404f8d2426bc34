// Package metrics defines the Prometheus collectors querier reports to.
//
// Metrics:
//   - querier_queries_total: Queries by outcome (ok, rejected, error)
//   - querier_rejections_total: Validation failures by facet and layer
//   - querier_applied_total: Descriptors applied to a builder, by facet
//   - querier_run_duration_seconds: Time from validation to the last apply
//   - querier_http_requests_total: HTTP requests by route and status
//   - querier_http_request_duration_seconds: HTTP request latency
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "querier"

// Query outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the collectors.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	AppliedTotal    *prometheus.CounterVec
	RunDuration     prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by outcome",
			},
			[]string{"outcome"},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Total number of rejected queries by facet and validation layer",
			},
			[]string{"facet", "layer"},
		),
		AppliedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "applied_total",
				Help:      "Total number of descriptors applied to a builder",
			},
			[]string{"facet"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of query validation and application in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveQuery records the outcome of one query.
func (m *Metrics) ObserveQuery(outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRejection records a validation failure.
func (m *Metrics) ObserveRejection(facet, layer string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(facet, layer).Inc()
}

// ObserveApplied records n descriptors applied for facet.
func (m *Metrics) ObserveApplied(facet string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.AppliedTotal.WithLabelValues(facet).Add(float64(n))
}

// ObserveRun records the duration of one run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
