package diarize

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the job pipeline. A nil *Metrics
// is valid and records nothing, so callers never need to guard.
type Metrics struct {
	JobsStarted   prometheus.Counter
	JobsSucceeded prometheus.Counter
	JobsFailed    *prometheus.CounterVec
	JobSeconds    prometheus.Histogram
	ActiveJobs    prometheus.Gauge
}

// DefaultMetrics creates pipeline metrics on the default registry.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mbud",
			Subsystem: "diarize",
			Name:      "jobs_started_total",
			Help:      "Total diarization jobs launched",
		}),
		JobsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mbud",
			Subsystem: "diarize",
			Name:      "jobs_succeeded_total",
			Help:      "Total diarization jobs that resolved to done",
		}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mbud",
			Subsystem: "diarize",
			Name:      "jobs_failed_total",
			Help:      "Total diarization jobs that resolved to failed",
		}, []string{"code"}),
		JobSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mbud",
			Subsystem: "diarize",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of diarization jobs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mbud",
			Subsystem: "diarize",
			Name:      "active_jobs",
			Help:      "Diarization jobs currently running",
		}),
	}
}

// JobStarted records a job launch.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
	m.ActiveJobs.Inc()
}

// JobSucceeded records a job that resolved to done.
func (m *Metrics) JobSucceeded(d time.Duration) {
	if m == nil {
		return
	}
	m.JobsSucceeded.Inc()
	m.JobSeconds.Observe(d.Seconds())
	m.ActiveJobs.Dec()
}

// JobFailed records a job that resolved to failed, labeled by its failure
// code.
func (m *Metrics) JobFailed(code string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsFailed.WithLabelValues(code).Inc()
	m.JobSeconds.Observe(d.Seconds())
	m.ActiveJobs.Dec()
}
