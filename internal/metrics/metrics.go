// Package metrics exposes pulse and upload counters in Prometheus format.
package metrics

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powermeter"

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	pulses       prometheus.Counter
	reports      *prometheus.CounterVec
	logErrors    prometheus.Counter
	droppedEdges prometheus.Gauge
	watts        prometheus.Gauge
	interval     prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pulses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulses_total",
			Help:      "Meter pulses processed since startup.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Uploads attempted, by result.",
		}, []string{"result"}),
		logErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_log_errors_total",
			Help:      "Failed timestamp log appends.",
		}),
		droppedEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_edges",
			Help:      "Edges discarded because processing fell behind.",
		}),
		watts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_watts",
			Help:      "Most recent instantaneous power estimate.",
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pulse_interval_seconds",
			Help:      "Time between the two most recent pulses.",
		}),
	}

	m.registry.MustRegister(
		m.pulses,
		m.reports,
		m.logErrors,
		m.droppedEdges,
		m.watts,
		m.interval,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.reports.WithLabelValues("ok")
	m.reports.WithLabelValues("error")

	return m
}

// ObservePulse records one processed edge. Non-finite power values leave the gauge unchanged.
func (m *Metrics) ObservePulse(watts float64, intervalMs int64) {
	m.pulses.Inc()
	if !math.IsInf(watts, 0) && !math.IsNaN(watts) {
		m.watts.Set(watts)
	}
	m.interval.Set(float64(intervalMs) / 1000)
}

// ObserveReport records the outcome of one upload.
func (m *Metrics) ObserveReport(err error) {
	if err != nil {
		m.reports.WithLabelValues("error").Inc()
		return
	}
	m.reports.WithLabelValues("ok").Inc()
}

// ObserveLogError records a failed timestamp append.
func (m *Metrics) ObserveLogError() {
	m.logErrors.Inc()
}

// SetDroppedEdges records the dispatcher's drop counter.
func (m *Metrics) SetDroppedEdges(n uint64) {
	m.droppedEdges.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
