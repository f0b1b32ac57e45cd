// Package metrics records outgoing request counters for the policy client.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics captures per-request outcomes of the API client.
type ClientMetrics interface {
	ObserveRequest(method string, status int, durationSeconds float64)
	IncTransportError(method string)
	IncCrossOriginBlocked()
}

// Noop implements ClientMetrics without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, int, float64) {}
func (Noop) IncTransportError(string)            {}
func (Noop) IncCrossOriginBlocked()              {}

// Prom implements ClientMetrics backed by Prometheus collectors registered on
// its own registry, so several clients in one process do not collide.
type Prom struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	transportErrors *prometheus.CounterVec
	blocked         prometheus.Counter
	once            sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_requests_total",
			Help:      "Requests dispatched by method and status code",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "client_request_duration_seconds",
			Help:      "Round-trip latency of dispatched requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_transport_errors_total",
			Help:      "Requests that failed before a response was received",
		}, []string{"method"}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_cross_origin_blocked_total",
			Help:      "Requests refused because the target was not same-origin",
		}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		p.registry.MustRegister(p.requests, p.duration, p.transportErrors, p.blocked)
	})
}

func (p *Prom) ObserveRequest(method string, status int, durationSeconds float64) {
	p.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	p.duration.WithLabelValues(method).Observe(durationSeconds)
}

func (p *Prom) IncTransportError(method string) {
	p.transportErrors.WithLabelValues(method).Inc()
}

func (p *Prom) IncCrossOriginBlocked() {
	p.blocked.Inc()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// Handler exposes the collectors in the Prometheus text format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
