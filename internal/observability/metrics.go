package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors exported by the service.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	errorTotal      *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	conflictTotal   prometheus.Counter
	notifyTotal     *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "Total number of handled HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		errorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "request_errors_total",
			Help:      "Total number of requests answered with a domain error.",
		}, []string{"method", "path", "code"}),
		transitionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deal",
			Name:      "transitions_total",
			Help:      "Total number of committed deal status transitions.",
		}, []string{"from", "to"}),
		conflictTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "deal",
			Name:      "transition_conflicts_total",
			Help:      "Total number of transitions rejected by the version check.",
		}),
		notifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifications",
			Name:      "total",
			Help:      "Total number of notification e-mails by outcome.",
		}, []string{"kind", "result"}),
	}
}

// Registry exposes the collectors for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(method, path, code).Inc()
}

// RecordTransition counts a committed status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(from, to).Inc()
}

// RecordConflict counts a transition that lost the version race.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflictTotal.Inc()
}

// RecordNotification counts one e-mail outcome: sent, failed or skipped.
func (m *Metrics) RecordNotification(kind, result string) {
	if m == nil {
		return
	}
	m.notifyTotal.WithLabelValues(kind, result).Inc()
}
