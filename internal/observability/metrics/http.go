package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal   *prometheus.CounterVec
	uploadBytes    *prometheus.HistogramVec
	retriesTotal   *prometheus.CounterVec
	exportsTotal   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docextract",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total accepted document uploads.",
		},
		[]string{"service", "mime_type"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "ingest",
			Name:      "upload_bytes",
			Help:      "Distribution of accepted upload sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "ingest",
			Name:      "retries_total",
			Help:      "Total manual document retries requested.",
		},
		[]string{"service"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docextract",
			Subsystem: "export",
			Name:      "reports_total",
			Help:      "Total generated request reports.",
		},
		[]string{"service"},
	)
	exportDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docextract",
			Subsystem: "export",
			Name:      "report_duration_seconds",
			Help:      "Report generation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, uploadsTotal, uploadBytes, retriesTotal, exportsTotal, exportDuration)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		uploadsTotal:    uploadsTotal,
		uploadBytes:     uploadBytes,
		retriesTotal:    retriesTotal,
		exportsTotal:    exportsTotal,
		exportDuration:  exportDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource IDs so the path label stays low-cardinality.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		if strings.HasSuffix(path, "/retry") {
			return "/v1/documents/{document_id}/retry"
		}
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/requests/"):
		switch {
		case strings.HasSuffix(path, "/documents"):
			return "/v1/requests/{request_id}/documents"
		case strings.HasSuffix(path, "/export"):
			return "/v1/requests/{request_id}/export"
		default:
			return "/v1/requests/{request_id}"
		}
	case strings.HasPrefix(path, "/v1/jobs/"):
		return "/v1/jobs/{job_id}"
	case strings.HasPrefix(path, "/v1/templates/"):
		return "/v1/templates/{template_id}/activate"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(service, mimeType string, size int64) {
	if mimeType == "" {
		mimeType = "unknown"
	}
	m.uploadsTotal.WithLabelValues(service, mimeType).Inc()
	if size > 0 {
		m.uploadBytes.WithLabelValues(service).Observe(float64(size))
	}
}

func (m *HTTPServerMetrics) RecordRetry(service string) {
	m.retriesTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordExport(service string, duration time.Duration) {
	m.exportsTotal.WithLabelValues(service).Inc()
	m.exportDuration.WithLabelValues(service).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
