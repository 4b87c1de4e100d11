// Package metrics provides Prometheus metrics for the dashboard servers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one dashboard process.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	cacheLookups     *prometheus.CounterVec
	upstreamFetches  *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	subscriptions    *prometheus.GaugeVec
	mutations        *prometheus.CounterVec
	liveSessions     prometheus.Gauge
	dependencyUp     *prometheus.GaugeVec
	logExports       *prometheus.CounterVec
}

// New registers the metrics on a fresh registry under the given namespace,
// e.g. "admin_dashboard".
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_lookups_total",
				Help:      "Query cache lookups by result (hit or miss)",
			},
			[]string{"query", "result"},
		),
		upstreamFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_fetches_total",
				Help:      "Backend reads by outcome",
			},
			[]string{"query", "outcome"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_fetch_duration_seconds",
				Help:      "Backend read duration in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query"},
		),
		subscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "query_subscriptions",
				Help:      "Open query subscriptions",
			},
			[]string{"query"},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Backend writes by outcome",
			},
			[]string{"mutation", "outcome"},
		),
		liveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_sessions",
				Help:      "Open live update websocket sessions",
			},
		),
		dependencyUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dependency_up",
				Help:      "Dependency reachability (1 = up, 0 = down)",
			},
			[]string{"dependency"},
		),
		logExports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_exports_total",
				Help:      "Log exports by archive outcome",
			},
			[]string{"archive"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) IncRequestsInFlight() {
	m.requestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.requestsInFlight.Dec()
}

func (m *Metrics) CacheHit(name string) {
	m.cacheLookups.WithLabelValues(name, "hit").Inc()
}

func (m *Metrics) CacheMiss(name string) {
	m.cacheLookups.WithLabelValues(name, "miss").Inc()
}

func (m *Metrics) FetchCompleted(name string, d time.Duration, err error) {
	m.upstreamFetches.WithLabelValues(name, outcome(err)).Inc()
	m.upstreamDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) Subscribed(name string) {
	m.subscriptions.WithLabelValues(name).Inc()
}

func (m *Metrics) Unsubscribed(name string) {
	m.subscriptions.WithLabelValues(name).Dec()
}

func (m *Metrics) MutationCompleted(name string, _ time.Duration, err error) {
	m.mutations.WithLabelValues(name, outcome(err)).Inc()
}

func (m *Metrics) SessionOpened() {
	m.liveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	m.liveSessions.Dec()
}

// SetDependencyUp sets the reachability gauge for a dependency.
func (m *Metrics) SetDependencyUp(name string, up bool) {
	if up {
		m.dependencyUp.WithLabelValues(name).Set(1)
	} else {
		m.dependencyUp.WithLabelValues(name).Set(0)
	}
}

// RecordLogExport counts an export; archive is "stored", "failed" or
// "disabled".
func (m *Metrics) RecordLogExport(archive string) {
	m.logExports.WithLabelValues(archive).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
