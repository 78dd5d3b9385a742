package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"marketpulse/internal/pkg/config"
)

// WorkerMetrics exposes the worker-level Prometheus metrics: the
// embedded configuration metrics (load timestamp, validation errors,
// fallbacks) plus a per-job last-success gauge. Counters and histograms
// for individual job runs live in the observability metrics package.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// JobLastSuccessTimestamp records the Unix timestamp of the last
	// successful run of each scheduled job.
	// Labels: job (news_cycle, morning_report, evening_report)
	JobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates and registers the worker metrics.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		JobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per scheduled job",
		}, []string{"job"}),
	}
}

// RecordLastSuccess sets the last-success gauge for the given job to
// the current time.
func (m *WorkerMetrics) RecordLastSuccess(job string) {
	m.JobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
