package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for background jobs such as the outbox
// publisher and the ledger sync worker.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of background jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful background job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed background job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
