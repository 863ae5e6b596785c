// Package metrics exposes Prometheus counters for materialization, calendar
// queries and HTTP traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/dateplan/internal/model"
)

const namespace = "dateplan"

type Metrics struct {
	registry     *prometheus.Registry
	materialized *prometheus.CounterVec
	patterns     *prometheus.CounterVec
	queries      *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		materialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materialized_records_total",
			Help:      "Concrete records written by pattern materialization.",
		}, []string{"kind", "rule"}),
		patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_total",
			Help:      "Patterns materialized, by kind and outcome.",
		}, []string{"kind", "result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_queries_total",
			Help:      "Calendar date queries, by resource and outcome.",
		}, []string{"resource", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		m.materialized,
		m.patterns,
		m.queries,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Materialized records the outcome of one pattern materialization.
func (m *Metrics) Materialized(kind, rule string, records int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.patterns.WithLabelValues(kind, "error").Inc()
		return
	}
	m.patterns.WithLabelValues(kind, "ok").Inc()
	m.materialized.WithLabelValues(kind, rule).Add(float64(records))
}

// Query records one calendar query outcome.
func (m *Metrics) Query(resource string, err error) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(resource, queryResult(err)).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

func queryResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNoPermission):
		return "forbidden"
	case errors.Is(err, model.ErrNotConnected):
		return "not_connected"
	}
	return "error"
}
