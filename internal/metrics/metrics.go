package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttempts counts retries scheduled after a transient failure
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_retry_attempts_total",
			Help: "Total number of retries scheduled after transient failures",
		},
		[]string{"executor", "op"},
	)

	// RetryExhausted counts calls that ran out of attempts
	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_retry_exhausted_total",
			Help: "Total number of calls that failed after exhausting retries",
		},
		[]string{"executor", "op"},
	)

	// ServiceCallsTotal tracks HTTP calls to the image service
	ServiceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_service_calls_total",
			Help: "Total number of calls to the image service",
		},
		[]string{"endpoint", "result"},
	)

	// ServiceLatency tracks image service call latency
	ServiceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagine_service_latency_seconds",
			Help:    "Image service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// JobsTotal tracks finished job runs per kind and outcome
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_jobs_total",
			Help: "Total number of job runs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// JobDuration tracks end-to-end run time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagine_job_duration_seconds",
			Help:    "Submit-to-terminal duration of job runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300, 600},
		},
		[]string{"kind"},
	)

	// PollsTotal counts observed statuses. TIMED_OUT is counted once per
	// exhausted poll budget, all others once per status query.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_polls_total",
			Help: "Total number of job status observations",
		},
		[]string{"status"},
	)

	// FallbacksTotal counts placeholder results returned for generate
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_fallbacks_total",
			Help: "Total number of placeholder results returned",
		},
		[]string{"style"},
	)

	// CascadeAttempts counts region edit strategy attempts
	CascadeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagine_cascade_attempts_total",
			Help: "Total number of region edit strategy attempts",
		},
		[]string{"strategy", "result"},
	)

	// DBConnectionPoolUsage tracks the percentage of used connections in the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imagine_db_connection_pool_usage_percent",
			Help: "Percentage of open database connections in use",
		},
	)
)
