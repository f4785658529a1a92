package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process JSON logger on stdout.
func NewLogger(debug bool) *slog.Logger {
	return newLogger(os.Stdout, debug)
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
