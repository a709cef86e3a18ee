package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "policy"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal      *prometheus.CounterVec
	retrievalHitTotal   *prometheus.CounterVec
	retrievalEmptyTotal *prometheus.CounterVec
	retrievedChunks     *prometheus.HistogramVec
	retrievalDuration   *prometheus.HistogramVec
	recommendTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total successful retrieval requests by mode.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total retrieval requests with at least one passage.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "empty_total",
			Help:      "Total retrieval requests without any passage above threshold.",
		},
		[]string{"service", "endpoint"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "returned_chunks",
			Help:      "Distribution of returned chunks per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds, embedding included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	recommendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Total recommendation requests by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalHitTotal,
		retrievalEmptyTotal,
		retrievedChunks,
		retrievalDuration,
		recommendTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		retrievalTotal:      retrievalTotal,
		retrievalHitTotal:   retrievalHitTotal,
		retrievalEmptyTotal: retrievalEmptyTotal,
		retrievedChunks:     retrievedChunks,
		retrievalDuration:   retrievalDuration,
		recommendTotal:      recommendTotal,
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

// normalizePath replaces ids with placeholders to keep label cardinality bounded.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "plans":
		parts[2] = "{plan_id}"
	case "documents":
		parts[2] = "{document_id}"
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, hybrid bool, resultCount int, duration time.Duration) {
	mode := "semantic"
	if hybrid {
		mode = "hybrid"
	}
	m.retrievalTotal.WithLabelValues(service, endpoint, mode).Inc()
	m.retrievedChunks.WithLabelValues(service, endpoint).Observe(float64(resultCount))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if resultCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.retrievalEmptyTotal.WithLabelValues(service, endpoint).Inc()
}

// RecordRecommendation counts outcomes: "matched", "empty" or "degraded".
func (m *HTTPServerMetrics) RecordRecommendation(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.recommendTotal.WithLabelValues(service, outcome).Inc()
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
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
