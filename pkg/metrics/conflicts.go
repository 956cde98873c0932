package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConflictMetrics tracks equipment conflict checks.
type ConflictMetrics struct {
	duration   *prometheus.HistogramVec
	shortages  prometheus.Counter
	superseded prometheus.Counter
}

// NewConflictMetrics registers conflict-check metrics on the provided registerer.
func NewConflictMetrics(reg prometheus.Registerer) *ConflictMetrics {
	if reg == nil {
		return &ConflictMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conflict_check_duration_seconds",
		Help:    "Duration of equipment conflict checks in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	shortages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_check_shortages_total",
		Help: "Checks that reported at least one equipment shortage.",
	})
	superseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_check_superseded_total",
		Help: "Checks discarded because a newer request replaced them.",
	})
	reg.MustRegister(duration, shortages, superseded)
	return &ConflictMetrics{
		duration:   duration,
		shortages:  shortages,
		superseded: superseded,
	}
}

// ObserveCheck records a completed check with its outcome label.
func (c *ConflictMetrics) ObserveCheck(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncShortage counts a check that found shortages.
func (c *ConflictMetrics) IncShortage() {
	if c == nil || c.shortages == nil {
		return
	}
	c.shortages.Inc()
}

// IncSuperseded counts a check discarded by a newer request.
func (c *ConflictMetrics) IncSuperseded() {
	if c == nil || c.superseded == nil {
		return
	}
	c.superseded.Inc()
}
