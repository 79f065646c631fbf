// Package models defines the JSON bodies of the transcription API.
package models

// Chunk is one time-aligned span of the transcript.
type Chunk struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscribeResponse is the full success body of POST /transcribe.
type TranscribeResponse struct {
	Success   bool    `json:"success"`
	Text      string  `json:"text"`
	Chunks    []Chunk `json:"chunks"`
	Timestamp string  `json:"timestamp"`
}

// TextOnlyResponse is the narrowed success body of POST /transcribe-text.
type TextOnlyResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// ErrorResponse is the body of every failure, at any layer. Timestamp is set
// for transcriber-level failures and infrastructure faults, and omitted for
// request-level rejections.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Model     string `json:"model"`
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
}
