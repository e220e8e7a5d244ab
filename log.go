package dispatch

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// logLevelEnv overrides the configured log level when set.
const logLevelEnv = "QUIC_DISPATCH_LOG_LEVEL"

// NewLogger creates a structured logger with the given level and format.
// Supported levels: debug, info, warn, error (default: none, which disables
// logging). Supported formats: text (default), json.
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger writing to w.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	if env := os.Getenv(logLevelEnv); env != "" {
		level = env
	}
	lvl, ok := parseLogLevel(level)
	if !ok {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
