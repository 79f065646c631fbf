// Package stt defines the speech-to-text capability the request pipeline
// delegates to. The model itself is opaque; providers live in subpackages.
package stt

import (
	"context"
	"errors"
)

// Request describes one transcription attempt against a local audio file.
// A request is owned by a single HTTP request and never shared.
type Request struct {
	AudioPath      string
	Language       string
	WantTimestamps bool
}

// Chunk is one time-aligned span of recognized speech, in seconds.
type Chunk struct {
	Start float64
	End   float64
	Text  string
}

// Result is the immutable outcome of a successful transcription. Chunks is
// populated only when timestamps were requested.
type Result struct {
	Text   string
	Chunks []Chunk
}

// Transcriber converts an audio file to text. Implementations must be safe
// for concurrent use after construction.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Close() error
}

// TranscriptionError marks a processing fault reported by the model itself
// (unreadable audio, decode failure). It is a domain-level outcome, distinct
// from transport or infrastructure errors.
type TranscriptionError struct {
	Reason string
}

func (e *TranscriptionError) Error() string {
	return e.Reason
}

// IsTranscriptionError reports whether err is a model-reported fault.
func IsTranscriptionError(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te)
}
