package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"speech-transcription-service/internal/models"
	"speech-transcription-service/internal/observability/logging"
	"speech-transcription-service/internal/observability/metrics"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID assigns a fresh request identifier before any other processing
// and echoes it back to the client. Every audit event of the request
// carries this id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the identifier assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Instrument records request count and latency per endpoint. The endpoint
// label is the matched route pattern, never the raw path, so arbitrary
// request paths cannot mint unbounded label cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}

		metrics.DefaultMetrics.RecordRequest(
			endpoint,
			strconv.Itoa(ww.Status()),
			time.Since(start).Seconds(),
		)
	})
}

// Recover is the last-resort guard of the pipeline: any fault outside the
// modeled steps becomes a structured 500 response instead of a dropped
// connection. chi's stock Recoverer is not used because the error body must
// keep the service's JSON shape.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log := logging.WithRequest(RequestIDFromContext(r.Context()))
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Unexpected fault in request pipeline")
				writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
					Error:     "Internal server error",
					Timestamp: nowISO(),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
