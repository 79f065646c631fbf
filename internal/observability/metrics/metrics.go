// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Auth / admission metrics
	AuthDenied      *prometheus.CounterVec
	UploadsRejected *prometheus.CounterVec

	// Transcription metrics
	TranscriptionsTotal    *prometheus.CounterVec
	TranscriptionDuration  *prometheus.HistogramVec
	TranscriptionsInFlight prometheus.Gauge

	// Audit sink metrics
	AuditEvents *prometheus.CounterVec
	AuditErrors *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
// Must only be called once per process; use DefaultMetrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and status code",
		}, []string{"endpoint", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"endpoint"}),

		AuthDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_denied_total",
			Help:      "Total number of requests denied by the auth gate",
		}, []string{"reason"}),
		UploadsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Total number of uploads rejected before transcription",
		}, []string{"reason"}),

		TranscriptionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total number of transcription attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		TranscriptionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Transcriber call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"provider"}),
		TranscriptionsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcriptions_in_flight",
			Help:      "Number of transcriber invocations currently running",
		}),

		AuditEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Total number of audit events recorded by sink and event type",
		}, []string{"sink", "event_type"}),
		AuditErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_errors_total",
			Help:      "Total number of swallowed audit sink errors",
		}, []string{"sink"}),
	}
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(endpoint string, status string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordAuthDenied records a request denied by the auth gate.
func (m *Metrics) RecordAuthDenied(reason string) {
	m.AuthDenied.WithLabelValues(reason).Inc()
}

// RecordUploadRejected records an upload rejected before any transcription.
func (m *Metrics) RecordUploadRejected(reason string) {
	m.UploadsRejected.WithLabelValues(reason).Inc()
}

// RecordTranscription records a transcriber call with its outcome.
func (m *Metrics) RecordTranscription(provider, outcome string, durationSeconds float64) {
	m.TranscriptionsTotal.WithLabelValues(provider, outcome).Inc()
	m.TranscriptionDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordAuditEvent records an audit event appended to a sink.
func (m *Metrics) RecordAuditEvent(sink, eventType string, err error) {
	m.AuditEvents.WithLabelValues(sink, eventType).Inc()
	if err != nil {
		m.AuditErrors.WithLabelValues(sink).Inc()
	}
}
