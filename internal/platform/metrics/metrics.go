// Package metrics holds the process's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	membershipOps *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		membershipOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "househealth",
			Name:      "membership_operations_total",
			Help:      "Family and membership operations by outcome.",
		}, []string{"operation", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "househealth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.membershipOps,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveMembershipOperation implements families.Metrics.
func (m *Metrics) ObserveMembershipOperation(operation, outcome string) {
	m.membershipOps.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTPRequest records one served request. route is the router pattern, not the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
