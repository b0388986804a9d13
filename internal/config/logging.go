package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger: JSON to the log file, and
// optionally text to stderr. The TUI owns the terminal, so interactive
// runs pass withStderr=false and rely on the file alone.
func SetupLogger(logFile string, level slog.Level, withStderr bool) (*slog.Logger, func() error) {
	var handlers []slog.Handler
	if withStderr {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if len(handlers) == 0 {
			// Nowhere else to write; a discard logger keeps call sites simple.
			return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
		}
		logger := slog.New(slogmulti.Fanout(handlers...))
		logger.Warn("failed to open log file, continuing without it", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}
	handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))

	logger := slog.New(slogmulti.Fanout(handlers...))
	return logger, file.Close
}

// SetupLoggerWithWriters builds a logger over custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	))
}
