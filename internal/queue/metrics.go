package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for processed jobs.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFatal     = "fatal"
	OutcomeExhausted = "exhausted"
	OutcomeRequeued  = "requeued"
)

var (
	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmq_jobs_enqueued_total",
		Help: "Jobs pushed onto a queue by class",
	}, []string{"class"})

	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmq_jobs_processed_total",
		Help: "Jobs settled by class and outcome",
	}, []string{"class", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gmq_job_duration_seconds",
		Help:    "Handler execution time by class",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	jobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmq_jobs_retried_total",
		Help: "Retries scheduled by class",
	}, []string{"class"})

	jobsDead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmq_jobs_dead_total",
		Help: "Jobs moved to the dead list by class",
	}, []string{"class"})

	jobsPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gmq_jobs_promoted_total",
		Help: "Delayed retries moved back onto their queue",
	})

	jobsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gmq_jobs_recovered_total",
		Help: "In-flight jobs returned to their queue from dead consumers",
	})
)

func observeEnqueued(class string) { jobsEnqueued.WithLabelValues(class).Inc() }

func observeOutcome(class, outcome string, seconds float64) {
	jobsProcessed.WithLabelValues(class, outcome).Inc()
	jobDuration.WithLabelValues(class).Observe(seconds)
	switch outcome {
	case OutcomeRetried:
		jobsRetried.WithLabelValues(class).Inc()
	case OutcomeFatal, OutcomeExhausted:
		jobsDead.WithLabelValues(class).Inc()
	}
}
