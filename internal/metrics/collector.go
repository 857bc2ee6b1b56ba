// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records generation-job metrics.
type Collector struct {
	jobsSubmitted *prometheus.CounterVec
	jobsTerminal  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	pollTicks     *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	downloads     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on the given registerer.
// Pass nil to use the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.jobsSubmitted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of generation jobs submitted",
		},
		[]string{"provider", "kind"},
	)

	c.jobsTerminal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_terminal_total",
			Help:      "Total number of jobs reaching a terminal state",
		},
		[]string{"provider", "kind", "state"},
	)

	c.jobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration from submission to terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"provider", "kind"},
	)

	c.pollTicks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Total number of poll requests issued",
		},
		[]string{"provider"},
	)

	c.uploads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_uploads_total",
			Help:      "Total number of reference asset uploads",
		},
		[]string{"provider", "status"},
	)

	c.downloads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_downloads_total",
			Help:      "Total number of artifact downloads",
		},
		[]string{"provider", "status"},
	)

	return c
}

// RecordSubmission counts a submitted job.
func (c *Collector) RecordSubmission(provider, kind string) {
	c.jobsSubmitted.WithLabelValues(provider, kind).Inc()
}

// RecordTerminal counts a job reaching a terminal state and observes
// its lifetime.
func (c *Collector) RecordTerminal(provider, kind, state string, duration time.Duration) {
	c.jobsTerminal.WithLabelValues(provider, kind, state).Inc()
	c.jobDuration.WithLabelValues(provider, kind).Observe(duration.Seconds())
}

// RecordPollTick counts one poll request.
func (c *Collector) RecordPollTick(provider string) {
	c.pollTicks.WithLabelValues(provider).Inc()
}

// RecordUpload counts a reference upload attempt.
func (c *Collector) RecordUpload(provider, status string) {
	c.uploads.WithLabelValues(provider, status).Inc()
}

// RecordDownload counts an artifact download attempt.
func (c *Collector) RecordDownload(provider, status string) {
	c.downloads.WithLabelValues(provider, status).Inc()
}
