// Package metrics exposes Prometheus instrumentation for the alarm scheduler
// and the HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smartblinds"

// Metrics owns a private registry so tests and multiple services never
// collide on the global one.
type Metrics struct {
	registry         *prometheus.Registry
	armedTimers      prometheus.Gauge
	firings          *prometheus.CounterVec
	actuatorFailures prometheus.Counter
	storeErrors      *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them, including the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		armedTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "armed_timers",
			Help:      "Number of currently armed action timers.",
		}),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_firings_total",
			Help:      "Alarm firings by target position.",
		}, []string{"target"}),
		actuatorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_failures_total",
			Help:      "Firings whose actuator call returned an error.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store operations by operation.",
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.armedTimers,
		m.firings,
		m.actuatorFailures,
		m.storeErrors,
		m.httpRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SetArmed(n int) { m.armedTimers.Set(float64(n)) }

func (m *Metrics) Fired(open bool) {
	target := "close"
	if open {
		target = "open"
	}
	m.firings.WithLabelValues(target).Inc()
}

func (m *Metrics) ActuatorFailed() { m.actuatorFailures.Inc() }

func (m *Metrics) StoreFailed(operation string) { m.storeErrors.WithLabelValues(operation).Inc() }

func (m *Metrics) HTTPRequest(route, code string) { m.httpRequests.WithLabelValues(route, code).Inc() }
