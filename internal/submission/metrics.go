package submission

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes queue activity on its own Prometheus registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Processed *prometheus.CounterVec
	Duration  prometheus.Histogram
	Depth     prometheus.Gauge
}

// NewMetrics creates the queue metrics under namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "processed_total",
			Help:      "Submissions processed, by final status.",
		}, []string{"status"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "duration_seconds",
			Help:      "Wall time spent processing a submission.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "queue_depth",
			Help:      "Submissions waiting to be processed.",
		}),
	}
	reg.MustRegister(m.Processed, m.Duration, m.Depth)
	return m
}

// Registry returns the registry holding the queue metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(status).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

func (m *Metrics) setDepth(n int) {
	if m == nil {
		return
	}
	m.Depth.Set(float64(n))
}
