// Package audit maintains the append-only compliance trail of the service.
// Events carry lengths and reasons only; audio content and transcribed text
// never enter the trail.
package audit

import (
	"context"
	"time"

	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/observability/metrics"
)

// EventType enumerates the compliance events the service emits.
type EventType string

const (
	EventAuthFailed           EventType = "AUTH_FAILED"
	EventTranscriptionStarted EventType = "TRANSCRIPTION_STARTED"
	EventTranscriptionSuccess EventType = "TRANSCRIPTION_SUCCESS"
	EventTranscriptionFailed  EventType = "TRANSCRIPTION_FAILED"
)

// Event is one append-only audit record.
type Event struct {
	Timestamp string    `json:"timestamp"`
	EventType EventType `json:"eventType"`
	Detail    string    `json:"detail"`
	RequestID string    `json:"requestId"`
}

// Sink receives audit events. Implementations must be safe for concurrent
// use; appends from different requests may interleave.
type Sink interface {
	Name() string
	Append(ctx context.Context, ev Event) error
	Close() error
}

// Logger fans audit events out to its sinks. Recording is synchronous so
// events for a single request land in causal order, and best-effort: sink
// errors are logged and swallowed, never surfaced to the request path.
type Logger struct {
	sinks   []Sink
	metrics *metrics.Metrics
}

// New creates an audit logger over the given sinks.
func New(sinks ...Sink) *Logger {
	return &Logger{
		sinks:   sinks,
		metrics: metrics.DefaultMetrics,
	}
}

// Record appends one event to every sink.
func (l *Logger) Record(ctx context.Context, eventType EventType, detail, requestID string) {
	log := logging.WithComponent("audit")
	ev := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		EventType: eventType,
		Detail:    detail,
		RequestID: requestID,
	}

	for _, sink := range l.sinks {
		err := sink.Append(ctx, ev)
		l.metrics.RecordAuditEvent(sink.Name(), string(eventType), err)
		if err != nil {
			log.Warn().
				Err(err).
				Str("sink", sink.Name()).
				Str("eventType", string(eventType)).
				Str("requestId", requestID).
				Msg("Failed to append audit event")
		}
	}
}

// Close closes all sinks, returning the last error encountered.
func (l *Logger) Close() error {
	log := logging.WithComponent("audit")
	var err error
	for _, sink := range l.sinks {
		if e := sink.Close(); e != nil {
			log.Error().
				Err(e).
				Str("sink", sink.Name()).
				Msg("Error closing audit sink")
			err = e
		}
	}
	return err
}
