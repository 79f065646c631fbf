// Package mock provides a scripted transcriber for tests and for running
// the service locally without an inference backend.
package mock

import (
	"context"
	"sync"

	"speech-transcription-service/internal/service/stt"
)

// DefaultResult is returned when no scripted result is set.
var DefaultResult = stt.Result{
	Text: "this is a simulated transcription",
	Chunks: []stt.Chunk{
		{Start: 0.0, End: 1.4, Text: "this is a"},
		{Start: 1.4, End: 2.9, Text: "simulated transcription"},
	},
}

// Transcriber implements stt.Transcriber with scripted responses and
// records every request it receives.
type Transcriber struct {
	mu     sync.Mutex
	result *stt.Result
	err    error
	calls  []stt.Request
	closed bool
}

// New creates a mock transcriber returning DefaultResult.
func New() *Transcriber {
	return &Transcriber{}
}

// SetResult scripts the next responses.
func (t *Transcriber) SetResult(result *stt.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = result
}

// SetError makes every call fail with err.
func (t *Transcriber) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Transcribe records the request and returns the scripted outcome. Chunks
// are withheld when the request did not ask for timestamps, matching real
// provider behavior.
func (t *Transcriber) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, req)

	if t.err != nil {
		return nil, t.err
	}

	src := t.result
	if src == nil {
		src = &DefaultResult
	}

	out := &stt.Result{Text: src.Text}
	if req.WantTimestamps {
		out.Chunks = append([]stt.Chunk(nil), src.Chunks...)
	}
	return out, nil
}

// Calls returns a copy of all requests received so far.
func (t *Transcriber) Calls() []stt.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]stt.Request(nil), t.calls...)
}

// Closed reports whether Close was called.
func (t *Transcriber) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close marks the transcriber closed.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
