package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors of the HTTP driver.
type Metrics struct {
	// RunsActive is the number of runs held in memory.
	RunsActive prometheus.Gauge
	// RunsCreated counts successful run creations.
	RunsCreated prometheus.Counter
	// Steps counts completed iterations by the phase they ran in.
	// Labels: phase (map-and-compass, landmark)
	Steps *prometheus.CounterVec
	// StepDuration measures a single engine step.
	StepDuration prometheus.Histogram
	// Errors counts failed requests.
	// Labels: kind (invalid_configuration, lifecycle, numeric_instability, ...)
	Errors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "pigeon",
			Subsystem: "runs",
			Name:      "active",
			Help:      "Runs currently held by the server",
		}),
		RunsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "runs",
			Name:      "created_total",
			Help:      "Total runs created",
		}),
		Steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "engine",
			Name:      "steps_total",
			Help:      "Total engine iterations by phase",
		}, []string{"phase"}),
		StepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pigeon",
			Subsystem: "engine",
			Name:      "step_duration_seconds",
			Help:      "Duration of a single engine iteration",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Total failed requests by error kind",
		}, []string{"kind"}),
	}
}
