// Package logging builds the launcher's slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New creates a logger writing to w. format is "text" (human-readable,
// the default) or "json"; unrecognized levels fall back to info. Loggers
// write to stderr in production since stdout belongs to the demo.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
