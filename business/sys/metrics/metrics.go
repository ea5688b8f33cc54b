// Package metrics constructs the metrics the application will track.
package metrics

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace is the prefix for every metric the node exposes.
const namespace = "ledger"

// Metrics represents the set of metrics we gather. These fields are
// safe to be accessed concurrently thanks to the prometheus types.
type Metrics struct {
	registry   *prometheus.Registry
	Goroutines prometheus.Gauge
	Requests   prometheus.Counter
	Errors     prometheus.Counter
	Panics     prometheus.Counter
}

// New constructs the metrics on their own registry so more than one
// node can live in the same process.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),
		Goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "goroutines",
			Help:      "Number of goroutines seen at the end of the last request.",
		}),
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of requests handled.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Number of requests that returned an error.",
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Number of requests that panicked.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Goroutines,
		m.Requests,
		m.Errors,
		m.Panics,
	)

	return &m
}

// Register adds additional collectors to the registry.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetGoroutines records the current number of goroutines.
func (m *Metrics) SetGoroutines() {
	m.Goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns the handler that serves the registry in the prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
