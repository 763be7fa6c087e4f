// Package metrics holds the Prometheus instruments of a mapper run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is registered on its own registry so tests can create as many as
// they like.
type Metrics struct {
	registry      *prometheus.Registry
	tasksTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	imagesResized prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svmmapper_tasks_total",
				Help: "Task identifiers handled, by outcome",
			},
			[]string{"outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "svmmapper_step_duration_seconds",
				Help:    "Time spent in each pipeline step",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"step"},
		),
		imagesResized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "svmmapper_images_resized_total",
			Help: "Staged images downscaled before compute",
		}),
	}
	m.registry.MustRegister(m.tasksTotal, m.stepDuration, m.imagesResized)
	return m
}

func (m *Metrics) TaskFinished(outcome string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStep(step string, started time.Time) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ImageResized() {
	if m == nil {
		return
	}
	m.imagesResized.Inc()
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
