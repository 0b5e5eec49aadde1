package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny max", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		level   string
		message string
	}{
		{"success at debug", http.StatusOK, "DEBUG", "request completed"},
		{"client error at debug", http.StatusBadRequest, "DEBUG", "request completed"},
		{"server error at error", http.StatusInternalServerError, "ERROR", "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chat", nil))

			out := buf.String()
			assert.Contains(t, out, "level="+tt.level)
			assert.Contains(t, out, tt.message)
			assert.Contains(t, out, "path=/chat")
			assert.True(t, strings.Contains(out, "status="), out)
		})
	}
}
