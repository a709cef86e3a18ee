package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	batchTotal      *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	embeddedChunks  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_ingest_total",
			Help:      "Total ingested policy documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_ingest_duration_seconds",
			Help:      "Policy document ingestion duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_ingest_in_flight",
			Help:      "Number of in-flight document ingestions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between upload and ingestion start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "batches_total",
			Help:      "Total embedding batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "batch_duration_seconds",
			Help:      "Embedding batch duration in seconds, store write included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	embeddedChunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "chunks_total",
			Help:      "Total chunks embedded and stored.",
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, batchTotal, batchDuration, embeddedChunks)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		batchTotal:      batchTotal,
		batchDuration:   batchDuration,
		embeddedChunks:  embeddedChunks,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := statusLabel(err)
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// ObserveEmbeddingBatch records one embed-and-store batch of the ingestion pipeline.
func (m *WorkerMetrics) ObserveEmbeddingBatch(size int, duration time.Duration, err error) {
	status := statusLabel(err)
	m.batchTotal.WithLabelValues(m.service, status).Inc()
	m.batchDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if err == nil && size > 0 {
		m.embeddedChunks.WithLabelValues(m.service).Add(float64(size))
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
