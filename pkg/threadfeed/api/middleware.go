package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

type contextKey string

const subjectContextKey contextKey = "identity-subject"

// SubjectHeader carries the pre-validated identity subject. The session
// layer in front of this service verifies the caller and forwards only
// the opaque subject id; no authentication happens here.
const SubjectHeader = "X-Identity-Subject"

// WithSubject extracts the identity subject header into the request
// context for handlers to consume.
func WithSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := r.Header.Get(SubjectHeader)
		if subject != "" {
			r = r.WithContext(context.WithValue(r.Context(), subjectContextKey, subject))
		}
		next.ServeHTTP(w, r)
	})
}

// SubjectFromContext returns the identity subject for the request, or an
// empty string when the caller supplied none.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey).(string)
	return subject
}

// responseWriter wrapper that captures the status code for logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// RequestLogger emits one structured log line per request
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}

// renderServiceError maps library errors onto HTTP statuses
func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, threadfeed.ErrUserNotFound),
		errors.Is(err, threadfeed.ErrThreadNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, threadfeed.ErrParentNotFound),
		errors.Is(err, threadfeed.ErrEmptyContent),
		errors.Is(err, threadfeed.ErrEmptyQuery):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, threadfeed.ErrInvalidCursor):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, threadfeed.ErrUserExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, threadfeed.ErrAttachmentUploadFailed),
		errors.Is(err, threadfeed.ErrUpstreamUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		slog.Error("Internal error", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
