package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vgrishin/docextract/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsInFlight    prometheus.Gauge
	jobAttempts     *prometheus.HistogramVec
	queueLag        *prometheus.HistogramVec
	violationsTotal *prometheus.CounterVec
	retentionSweeps *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total processed extraction jobs by terminal document status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Extraction job duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of extraction jobs currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	jobAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "job_attempts",
			Help:      "Distribution of delivery attempts at job completion.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	violationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "validation_violations_total",
			Help:      "Total vendor rule violations recorded on extracted documents.",
		},
		[]string{"service"},
	)
	retentionSweeps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "worker",
			Name:      "retention_deleted_jobs_total",
			Help:      "Total finished jobs removed by the retention sweeper.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, jobAttempts, queueLag, violationsTotal, retentionSweeps)

	return &WorkerMetrics{
		registry:        registry,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		jobsInFlight:    jobsInFlight,
		jobAttempts:     jobAttempts,
		queueLag:        queueLag,
		violationsTotal: violationsTotal,
		retentionSweeps: retentionSweeps,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, status domain.DocumentStatus, duration time.Duration, attempts int) {
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(service, string(status)).Inc()
	m.jobDuration.WithLabelValues(service, string(status)).Observe(duration.Seconds())
	if attempts > 0 {
		m.jobAttempts.WithLabelValues(service).Observe(float64(attempts))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordViolations(service string, count int) {
	if count <= 0 {
		return
	}
	m.violationsTotal.WithLabelValues(service).Add(float64(count))
}

func (m *WorkerMetrics) RecordRetentionSweep(service string, status domain.JobStatus, deleted int64) {
	if deleted <= 0 {
		return
	}
	m.retentionSweeps.WithLabelValues(service, string(status)).Add(float64(deleted))
}
