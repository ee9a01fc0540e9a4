package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"penguin-ternos-backend/internal/cache"
	"penguin-ternos-backend/internal/domain"
	"penguin-ternos-backend/internal/logger"
)

const (
	RequestIDHeader   = "X-Request-ID"
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

// statusRecorder keeps the status and, when capture is set, a copy of the body.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	capture bool
	body    bytes.Buffer
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.capture {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

// RequestID tags the request with an id, echoes it back and puts a logger
// carrying it into the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logger.WithContext(r.Context(), logger.Get().With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog logs one line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		logger.FromContext(r.Context()).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Recover turns a handler panic into a 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(r.Context(), "Handler panicked", "path", r.URL.Path, "panic", p)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Tracing starts a server span per request, continuing any trace context
// sent by the caller.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer("penguin-ternos-backend/internal/api/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// pendingTTL bounds how long a key stays claimed by a request that never
// finishes, so a crashed process does not lock the key out until ttl.
const pendingTTL = time.Minute

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Idempotency replays the stored response for a POST that repeats an
// Idempotency-Key. Keys are scoped to the request path and bound to the
// request body. Server errors and panics are not stored so the client can
// retry them.
func Idempotency(store cache.IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	pending := pendingTTL
	if ttl < pending {
		pending = ttl
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(IdempotencyHeader)
			if r.Method != http.MethodPost || raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				writeError(w, r, domain.NewValidationError("Idempotency-Key", "must be a UUID"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, r, domain.NewValidationError("body", "could not read request body: %v", err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			key := r.URL.Path + ":" + raw
			hash := requestHash(r, body)

			stored, err := store.Get(ctx, key)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if stored != nil {
				if stored.RequestHash != hash {
					writeError(w, r, cache.ErrKeyReused)
					return
				}
				logger.InfoContext(ctx, "Replaying idempotent response", "key", raw, "status", stored.Status)
				w.Header().Set(ReplayedHeader, "true")
				w.Header().Set("Content-Type", stored.ContentType)
				w.WriteHeader(stored.Status)
				w.Write(stored.Body)
				return
			}

			reserved, err := store.Reserve(ctx, key, pending)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !reserved {
				writeError(w, r, cache.ErrInFlight)
				return
			}

			saved := false
			defer func() {
				if saved {
					return
				}
				// Runs while a panic unwinds too; Recover answers the request.
				if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
					logger.WarnContext(ctx, "Failed to release idempotency key", "key", raw, "error", err)
				}
			}()

			rec := &statusRecorder{ResponseWriter: w, capture: true}
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			if rec.status >= http.StatusInternalServerError {
				return
			}
			resp := &cache.StoredResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
				RequestHash: hash,
			}
			if err := store.Save(context.WithoutCancel(ctx), key, resp, ttl); err != nil {
				logger.WarnContext(ctx, "Failed to store idempotent response", "key", raw, "error", err)
				return
			}
			saved = true
		})
	}
}
