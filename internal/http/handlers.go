// Package http implements the transcription request pipeline: request id,
// auth gate, size check, ephemeral file scope, transcriber call, audit
// trail, response shaping.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"speech-transcription-service/internal/app"
	"speech-transcription-service/internal/audit"
	"speech-transcription-service/internal/auth"
	"speech-transcription-service/internal/models"
	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/observability/metrics"
	"speech-transcription-service/internal/service/stt"
	"speech-transcription-service/internal/storage"
)

// Handler serves the transcription endpoints.
type Handler struct {
	gate        *auth.Gate
	store       *storage.Store
	transcriber stt.Transcriber
	auditor     *audit.Logger
	metrics     *metrics.Metrics

	provider        string
	model           string
	device          string
	maxBytes        int64
	defaultLanguage string
}

// NewHandler wires the pipeline stages together.
func NewHandler(
	a *app.Application,
	gate *auth.Gate,
	store *storage.Store,
	transcriber stt.Transcriber,
	auditor *audit.Logger,
) *Handler {
	return &Handler{
		gate:            gate,
		store:           store,
		transcriber:     transcriber,
		auditor:         auditor,
		metrics:         metrics.DefaultMetrics,
		provider:        a.Cfg.STTProvider,
		model:           a.Cfg.WhisperModel,
		device:          a.Cfg.WhisperDevice,
		maxBytes:        a.Cfg.MaxFileBytes(),
		defaultLanguage: a.Cfg.DefaultLanguage,
	}
}

// Health reports static service status. No auth, no audit: it reveals no
// sensitive data.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Service:   app.ServiceName,
		Model:     h.model,
		Device:    h.device,
		Timestamp: nowISO(),
	})
}

// Transcribe handles POST /transcribe.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	body, status := h.run(r)
	writeJSON(w, status, body)
}

// TranscribeText handles POST /transcribe-text. It runs the pipeline once
// and projects the success body down to {success, text}; failures pass
// through unchanged.
func (h *Handler) TranscribeText(w http.ResponseWriter, r *http.Request) {
	body, status := h.run(r)
	if full, ok := body.(models.TranscribeResponse); ok && full.Success {
		writeJSON(w, status, models.TextOnlyResponse{Success: true, Text: full.Text})
		return
	}
	writeJSON(w, status, body)
}

// run executes the pipeline for one request and returns the response body
// with its HTTP status. The upload is consumed exactly once.
func (h *Handler) run(r *http.Request) (any, int) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)
	log := logging.WithRequest(requestID)

	// Auth gate runs before anything touches the payload.
	if d := h.gate.Authorize(r.Header.Get("Authorization")); !d.Allowed {
		h.auditor.Record(ctx, audit.EventAuthFailed, d.Reason, requestID)
		h.metrics.RecordAuthDenied(d.Reason)
		log.Warn().Str("reason", d.Reason).Msg("Request denied by auth gate")
		return models.ErrorResponse{Error: d.Reason}, http.StatusUnauthorized
	}

	// Declared-length ceiling: reject before a single byte hits disk.
	if h.maxBytes > 0 && r.ContentLength > h.maxBytes {
		detail := fmt.Sprintf("upload rejected: declared %d bytes exceeds limit of %d", r.ContentLength, h.maxBytes)
		h.auditor.Record(ctx, audit.EventTranscriptionFailed, detail, requestID)
		h.metrics.RecordUploadRejected("too_large")
		return models.ErrorResponse{Error: "Audio file too large"}, http.StatusRequestEntityTooLarge
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		h.metrics.RecordUploadRejected("missing_audio")
		// A part with an empty filename parses as a plain form value.
		if r.MultipartForm != nil && len(r.MultipartForm.Value["audio"]) > 0 {
			return models.ErrorResponse{Error: "No audio file selected"}, http.StatusBadRequest
		}
		return models.ErrorResponse{Error: "No audio file provided"}, http.StatusBadRequest
	}
	defer file.Close()
	defer func() {
		// Drop multipart's own buffered copies; audio must not outlive the
		// request anywhere on disk.
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}()

	if header.Size == 0 {
		h.metrics.RecordUploadRejected("missing_audio")
		return models.ErrorResponse{Error: "No audio file provided"}, http.StatusBadRequest
	}

	language := r.FormValue("language")
	if language == "" {
		language = h.defaultLanguage
	}
	wantTimestamps := parseTimestamps(r.FormValue("timestamps"))

	handle, err := h.store.Save(file)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			detail := fmt.Sprintf("upload rejected: stream exceeds limit of %d bytes", h.maxBytes)
			h.auditor.Record(ctx, audit.EventTranscriptionFailed, detail, requestID)
			h.metrics.RecordUploadRejected("too_large")
			return models.ErrorResponse{Error: "Audio file too large"}, http.StatusRequestEntityTooLarge
		}
		log.Error().Err(err).Msg("Failed to persist upload")
		return models.ErrorResponse{Error: "Internal server error", Timestamp: nowISO()}, http.StatusInternalServerError
	}
	// Guaranteed release on every exit path below.
	defer handle.Remove()

	h.auditor.Record(ctx, audit.EventTranscriptionStarted,
		fmt.Sprintf("size=%d bytes language=%s timestamps=%t", header.Size, language, wantTimestamps),
		requestID)

	start := time.Now()
	result, err := h.transcriber.Transcribe(ctx, stt.Request{
		AudioPath:      handle.Path(),
		Language:       language,
		WantTimestamps: wantTimestamps,
	})
	duration := time.Since(start)

	if err != nil {
		// A transcriber fault is a domain-level outcome, not a transport
		// fault: structured failure body, HTTP 200.
		detail := err.Error()
		h.auditor.Record(ctx, audit.EventTranscriptionFailed, detail, requestID)
		h.metrics.RecordTranscription(h.provider, "failure", duration.Seconds())
		if stt.IsTranscriptionError(err) {
			log.Warn().Str("reason", detail).Msg("Transcription failed")
		} else {
			log.Error().Err(err).Msg("Transcriber collaborator failed")
		}
		return models.ErrorResponse{Error: detail, Timestamp: nowISO()}, http.StatusOK
	}

	chunks := make([]models.Chunk, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		chunks = append(chunks, models.Chunk{Start: c.Start, End: c.End, Text: c.Text})
	}

	h.auditor.Record(ctx, audit.EventTranscriptionSuccess,
		fmt.Sprintf("transcribed %d characters in %d chunks", len(result.Text), len(chunks)),
		requestID)
	h.metrics.RecordTranscription(h.provider, "success", duration.Seconds())
	log.Info().
		Int("textLength", len(result.Text)).
		Int("chunks", len(chunks)).
		Dur("duration", duration).
		Msg("Transcription completed")

	return models.TranscribeResponse{
		Success:   true,
		Text:      result.Text,
		Chunks:    chunks,
		Timestamp: nowISO(),
	}, http.StatusOK
}

// parseTimestamps interprets the optional "timestamps" form value. Absent
// means true; otherwise only a case-insensitive "true" enables them.
func parseTimestamps(v string) bool {
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "true")
}

func nowISO() string {
	return time.Now().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logging.WithComponent("http")
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
