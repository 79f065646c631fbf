package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"speech-transcription-service/internal/app"
	"speech-transcription-service/internal/audit"
	"speech-transcription-service/internal/auth"
	"speech-transcription-service/internal/config"
	"speech-transcription-service/internal/models"
	"speech-transcription-service/internal/service/stt"
	"speech-transcription-service/internal/service/stt/mock"
	"speech-transcription-service/internal/storage"
)

const testAPIKey = "test-api-key"

type testEnv struct {
	router      http.Handler
	transcriber *mock.Transcriber
	uploadDir   string
	auditPath   string
}

func newTestEnv(t *testing.T, development bool) *testEnv {
	t.Helper()
	transcriber := mock.New()
	env := newTestEnvWith(t, transcriber, development)
	env.transcriber = transcriber
	return env
}

func newTestEnvWith(t *testing.T, transcriber stt.Transcriber, development bool) *testEnv {
	t.Helper()

	cfg := &config.Config{
		APIKey:          testAPIKey,
		Environment:     "production",
		MaxFileSizeMB:   1,
		STTProvider:     "mock",
		WhisperModel:    "openai/whisper-base",
		WhisperDevice:   "cpu",
		DefaultLanguage: "english",
	}
	if development {
		cfg.Environment = "development"
	}

	uploadDir := t.TempDir()
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	fileSink, err := audit.NewFileSink(auditPath)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	t.Cleanup(func() { fileSink.Close() })

	handler := NewHandler(
		app.New(cfg),
		auth.NewGate(cfg.APIKey, cfg.DevelopmentMode()),
		storage.New(uploadDir, cfg.MaxFileBytes()),
		transcriber,
		audit.New(fileSink),
	)

	return &testEnv{
		router:    NewRouter(handler),
		uploadDir: uploadDir,
		auditPath: auditPath,
	}
}

// multipartBody builds an upload form; an empty audio name omits the file part.
func multipartBody(t *testing.T, audioName string, audioContent []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if audioName != "" || audioContent != nil {
		fw, err := mw.CreateFormFile("audio", audioName)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := fw.Write(audioContent); err != nil {
			t.Fatalf("Writing audio part failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Closing writer failed: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func (e *testEnv) post(t *testing.T, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) auditEvents(t *testing.T) []audit.Event {
	t.Helper()
	f, err := os.Open(e.auditPath)
	if err != nil {
		t.Fatalf("Opening audit log failed: %v", err)
	}
	defer f.Close()

	var events []audit.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev audit.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("Invalid audit line: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func (e *testEnv) uploadCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	return len(entries)
}

func TestTranscribe_Success(t *testing.T) {
	env := newTestEnv(t, false)
	env.transcriber.SetResult(&stt.Result{
		Text: "patient is conscious",
		Chunks: []stt.Chunk{
			{Start: 0.0, End: 2.1, Text: "patient"},
			{Start: 2.1, End: 3.4, Text: "is conscious"},
		},
	})

	body, ct := multipartBody(t, "scene.wav", []byte("ten seconds of audio"), map[string]string{
		"language":   "english",
		"timestamps": "true",
	})
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var resp models.TranscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Text != "patient is conscious" {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Chunks) != 2 || resp.Chunks[0].End != 2.1 {
		t.Errorf("Chunks = %+v", resp.Chunks)
	}
	if resp.Timestamp == "" {
		t.Error("Expected a completion timestamp")
	}

	// The transcriber saw the language hint and the timestamps flag.
	calls := env.transcriber.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 transcriber call, got %d", len(calls))
	}
	if calls[0].Language != "english" || !calls[0].WantTimestamps {
		t.Errorf("Transcriber request = %+v", calls[0])
	}

	// The ephemeral file is gone after the response.
	if _, err := os.Stat(calls[0].AudioPath); !os.IsNotExist(err) {
		t.Error("Ephemeral file must not exist after the response")
	}
	if n := env.uploadCount(t); n != 0 {
		t.Errorf("Upload dir must be empty, found %d entries", n)
	}

	// Audit trail: start then success, in causal order.
	events := env.auditEvents(t)
	if len(events) != 2 {
		t.Fatalf("Expected 2 audit events, got %d: %+v", len(events), events)
	}
	if events[0].EventType != audit.EventTranscriptionStarted ||
		events[1].EventType != audit.EventTranscriptionSuccess {
		t.Errorf("Audit order wrong: %+v", events)
	}
	if events[0].RequestID == "" || events[0].RequestID != events[1].RequestID {
		t.Error("Audit events of one request must share its request id")
	}
	// No transcript content in the trail, only a length summary.
	if bytes.Contains([]byte(events[1].Detail), []byte("patient")) {
		t.Error("Audit detail must not contain transcript text")
	}
}

func TestTranscribe_DefaultsApply(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	calls := env.transcriber.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].Language != "english" {
		t.Errorf("Default language = %q, want english", calls[0].Language)
	}
	if !calls[0].WantTimestamps {
		t.Error("Timestamps must default to true")
	}
}

func TestTranscribe_TimestampsOff(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), map[string]string{"timestamps": "FALSE"})
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp models.TranscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if len(resp.Chunks) != 0 {
		t.Errorf("Expected no chunks, got %+v", resp.Chunks)
	}
	if calls := env.transcriber.Calls(); calls[0].WantTimestamps {
		t.Error("timestamps=FALSE must disable timestamps")
	}
}

func TestTranscribe_TranscriberFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.transcriber.SetError(&stt.TranscriptionError{Reason: "could not decode audio"})

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	// Domain-level failure is a structured 200, not an HTTP error.
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error != "could not decode audio" || resp.Timestamp == "" {
		t.Errorf("Failure body = %+v", resp)
	}

	// File is deleted on the failure path too.
	if n := env.uploadCount(t); n != 0 {
		t.Errorf("Upload dir must be empty after failure, found %d entries", n)
	}

	events := env.auditEvents(t)
	if len(events) != 2 || events[1].EventType != audit.EventTranscriptionFailed {
		t.Fatalf("Expected started+failed audit events, got %+v", events)
	}
}

func TestTranscribe_InfrastructureErrorFromTranscriberIsStructured(t *testing.T) {
	env := newTestEnv(t, false)
	env.transcriber.SetError(errors.New("inference backend unreachable"))

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	if rec.Code != http.StatusOK {
		t.Fatalf("Any transcriber fault must stay a structured outcome, got %d", rec.Code)
	}
	if n := env.uploadCount(t); n != 0 {
		t.Errorf("Upload dir must be empty, found %d entries", n)
	}
}

type panickingTranscriber struct{}

func (panickingTranscriber) Transcribe(context.Context, stt.Request) (*stt.Result, error) {
	panic("inference runtime fault")
}

func (panickingTranscriber) Close() error { return nil }

func TestTranscribe_PanicBecomesStructuredInternalError(t *testing.T) {
	env := newTestEnvWith(t, panickingTranscriber{}, false)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error != "Internal server error" || resp.Timestamp == "" {
		t.Errorf("Failure body = %+v", resp)
	}

	// The deferred cleanup still runs while the panic unwinds.
	if n := env.uploadCount(t); n != 0 {
		t.Errorf("Upload dir must be empty after a panic, found %d entries", n)
	}
}

func TestTranscribe_AuthDenied(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, "wrong-key")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Error != auth.ReasonInvalid {
		t.Errorf("Error = %q, want %q", resp.Error, auth.ReasonInvalid)
	}

	// Exactly one AUTH_FAILED event, no file, no transcriber call.
	events := env.auditEvents(t)
	if len(events) != 1 || events[0].EventType != audit.EventAuthFailed {
		t.Fatalf("Expected exactly one AUTH_FAILED event, got %+v", events)
	}
	if events[0].Detail != "Invalid API key" {
		t.Errorf("Audit detail = %q, want %q", events[0].Detail, "Invalid API key")
	}
	if n := env.uploadCount(t); n != 0 {
		t.Error("Denied requests must never create an ephemeral file")
	}
	if len(env.transcriber.Calls()) != 0 {
		t.Error("Denied requests must never reach the transcriber")
	}
}

func TestTranscribe_MissingHeaderDenied(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", rec.Code)
	}
	events := env.auditEvents(t)
	if len(events) != 1 || events[0].Detail != auth.ReasonMalformed {
		t.Errorf("Expected one malformed-denial audit event, got %+v", events)
	}
}

func TestTranscribe_DevelopmentBypass(t *testing.T) {
	env := newTestEnv(t, true)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	if len(env.transcriber.Calls()) != 1 {
		t.Error("Development mode request must reach the transcriber without credentials")
	}
}

func TestTranscribe_DeclaredTooLarge(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader(make([]byte, 16)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.ContentLength = 2 * 1024 * 1024 // over the 1MB test ceiling

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Status = %d, want 413", rec.Code)
	}
	if n := env.uploadCount(t); n != 0 {
		t.Error("Oversized declarations must be rejected before any file write")
	}
	if len(env.transcriber.Calls()) != 0 {
		t.Error("Oversized declarations must never reach the transcriber")
	}
	events := env.auditEvents(t)
	if len(events) != 1 || events[0].EventType != audit.EventTranscriptionFailed {
		t.Errorf("Expected one failure audit event, got %+v", events)
	}
}

func TestTranscribe_MissingAudioPart(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "", nil, map[string]string{"language": "english"})
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Error != "No audio file provided" {
		t.Errorf("Error = %q", resp.Error)
	}
	// Malformed request, not a compliance event: no audit record.
	if events := env.auditEvents(t); len(events) != 0 {
		t.Errorf("Expected no audit events, got %+v", events)
	}
}

func TestTranscribe_EmptyFilename(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Error != "No audio file selected" {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestTranscribeText_ProjectsSuccessBody(t *testing.T) {
	env := newTestEnv(t, false)
	env.transcriber.SetResult(&stt.Result{
		Text:   "patient is conscious",
		Chunks: []stt.Chunk{{Start: 0, End: 2.1, Text: "patient"}},
	})

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe-text", body, ct, testAPIKey)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if got["success"] != true || got["text"] != "patient is conscious" {
		t.Errorf("Body = %v", got)
	}
	if _, ok := got["chunks"]; ok {
		t.Error("text-only response must not contain chunks")
	}
	if _, ok := got["timestamp"]; ok {
		t.Error("text-only response must not contain a timestamp")
	}

	// The pipeline ran exactly once.
	if calls := env.transcriber.Calls(); len(calls) != 1 {
		t.Errorf("Expected 1 transcriber call, got %d", len(calls))
	}
}

func TestTranscribeText_FailurePassesThrough(t *testing.T) {
	env := newTestEnv(t, false)
	env.transcriber.SetError(&stt.TranscriptionError{Reason: "model error"})

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	recText := env.post(t, "/transcribe-text", body, ct, testAPIKey)

	body2, ct2 := multipartBody(t, "a.wav", []byte("audio"), nil)
	recFull := env.post(t, "/transcribe", body2, ct2, testAPIKey)

	if recText.Code != recFull.Code {
		t.Errorf("Status mismatch: text=%d full=%d", recText.Code, recFull.Code)
	}

	var textResp, fullResp models.ErrorResponse
	if err := json.Unmarshal(recText.Body.Bytes(), &textResp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if err := json.Unmarshal(recFull.Body.Bytes(), &fullResp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if textResp.Success != fullResp.Success || textResp.Error != fullResp.Error {
		t.Errorf("Failure bodies must match: text=%+v full=%+v", textResp, fullResp)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response JSON: %v", err)
	}
	if resp.Status != "healthy" || resp.Service != app.ServiceName {
		t.Errorf("Health body = %+v", resp)
	}
	if resp.Model != "openai/whisper-base" || resp.Device != "cpu" {
		t.Errorf("Health must report model and device: %+v", resp)
	}

	// No auth needed, no audit event written.
	if events := env.auditEvents(t); len(events) != 0 {
		t.Errorf("Health checks must not be audited, got %+v", events)
	}
}

func TestRequestID_AssignedAndEchoed(t *testing.T) {
	env := newTestEnv(t, false)

	body, ct := multipartBody(t, "a.wav", []byte("audio"), nil)
	rec := env.post(t, "/transcribe", body, ct, testAPIKey)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("Response must carry the assigned request id")
	}
}
