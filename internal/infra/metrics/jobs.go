package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobRunsTotal, jobDurationSeconds, workerTasksTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job runs, labeled by job and success.",
		},
		[]string{"job", "success"},
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Background job run duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"job"},
	)

	workerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_total",
			Help: "Tasks handled by worker pools, by pool and result (ok/error/dropped).",
		},
		[]string{"pool", "result"},
	)
)

func ObserveJob(job string, d time.Duration, err error) {
	jobRunsTotal.WithLabelValues(norm(job), boolLabel(err == nil)).Inc()
	jobDurationSeconds.WithLabelValues(norm(job)).Observe(d.Seconds())
}

func IncWorkerTask(pool, result string) {
	workerTasksTotal.WithLabelValues(norm(pool), norm(result)).Inc()
}
