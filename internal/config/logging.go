package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// LogLevels sets separate thresholds for the two outputs. The CLI keeps
// stderr at WARN so log lines do not interleave with answers, while the
// file still records at the configured level.
type LogLevels struct {
	Stderr slog.Level
	File   slog.Level
}

// SetupLogger creates a dual-output logger: text to stderr, JSON to file.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	return SetupLoggerLevels(logFile, LogLevels{Stderr: level, File: level})
}

// SetupLoggerLevels is SetupLogger with per-output levels.
// An empty logFile, or one that cannot be opened, yields a stderr-only logger.
func SetupLoggerLevels(logFile string, levels LogLevels) (*slog.Logger, func() error) {
	noop := func() error { return nil }
	if logFile == "" {
		return slog.New(stderrHandler(os.Stderr, levels.Stderr)), noop
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler(os.Stderr, levels.Stderr)), noop
	}

	return SetupLoggerWithWriters(os.Stderr, file, levels), file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, levels LogLevels) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levels.File}).
		WithAttrs([]slog.Attr{slog.String("service", "chorus")})
	return slog.New(slogmulti.Fanout(stderrHandler(stderr, levels.Stderr), fileHandler))
}

func stderrHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
