package server

import (
	"log/slog"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// maxPathLogLen is the maximum length for logged paths before truncation.
const maxPathLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
// Chat requests fan out to several models, so the bar sits well above plain API latency.
const slowRequestThreshold = 30 * time.Second

// LoggingMiddleware logs every request with its status and timing.
// Slow requests are logged at WARN level, server errors at ERROR.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", truncate(r.URL.Path, maxPathLogLen),
				"status", status,
				"duration_ms", duration.Milliseconds(),
			}
			if id := chiMiddleware.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, "request_id", id)
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
