package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	jobsProcessedTotal   *prometheus.CounterVec
	jobDurationSeconds   *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	evaluationsFinalized prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors shared by the API
// and worker processes.
func RegisterMetrics() {
	registerOnce.Do(func() {
		jobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalia_jobs_processed_total",
			Help: "Pipeline jobs processed, by stage and outcome.",
		}, []string{"stage", "outcome"})

		jobDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalia_job_duration_seconds",
			Help:    "Duration distribution of pipeline jobs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalia_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalia_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalia_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalia_evaluations_finalized_total",
			Help: "Evaluations flipped to their terminal status.",
		})

		prometheus.MustRegister(jobsProcessedTotal, jobDurationSeconds,
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, evaluationsFinalized)
	})
}

// JobsProcessed exposes the pipeline job counter.
func JobsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return jobsProcessedTotal
}

// JobDuration exposes the pipeline job duration histogram.
func JobDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return jobDurationSeconds
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// EvaluationsFinalized exposes the terminal-flip counter.
func EvaluationsFinalized() prometheus.Counter {
	RegisterMetrics()
	return evaluationsFinalized
}
