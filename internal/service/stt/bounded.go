package stt

import (
	"context"

	"golang.org/x/sync/semaphore"

	"speech-transcription-service/internal/observability/metrics"
)

// Bounded caps the number of concurrent Transcribe calls so a shared
// inference device is not oversubscribed. Callers past the bound block
// until a slot frees or their context is cancelled.
type Bounded struct {
	inner   Transcriber
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
}

// NewBounded wraps inner with a concurrency bound of max. A bound of zero
// or less returns inner unchanged.
func NewBounded(inner Transcriber, max int64) Transcriber {
	if max <= 0 {
		return inner
	}
	return &Bounded{
		inner:   inner,
		sem:     semaphore.NewWeighted(max),
		metrics: metrics.DefaultMetrics,
	}
}

// Transcribe acquires a slot, then delegates.
func (b *Bounded) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	b.metrics.TranscriptionsInFlight.Inc()
	defer b.metrics.TranscriptionsInFlight.Dec()

	return b.inner.Transcribe(ctx, req)
}

// Close closes the wrapped transcriber.
func (b *Bounded) Close() error {
	return b.inner.Close()
}
