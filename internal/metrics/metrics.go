// Package metrics exposes Prometheus collectors for relationship
// transitions, transaction conflicts, feed composition and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	feed        *prometheus.HistogramVec
	requests    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "friendship_transitions_total",
			Help: "Relationship operations by outcome.",
		}, []string{"op", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "friendship_tx_conflicts_total",
			Help: "Pair transactions retried after a concurrent write.",
		}, []string{"op"}),
		feed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feed_compose_seconds",
			Help:    "Time to compose a feed.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cached"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.reg.MustRegister(
		m.transitions,
		m.conflicts,
		m.feed,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTransition(op, outcome string) {
	m.transitions.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveConflict(op string) {
	m.conflicts.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveFeedCompose(d time.Duration, cached bool) {
	m.feed.WithLabelValues(strconv.FormatBool(cached)).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
