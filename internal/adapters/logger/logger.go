package logger

import (
	"io"
	"os"
	"strings"

	"tickerSignal/internal/ports"
)

// New selects a logger implementation by format: "json" and "console" use
// zerolog, "plain" uses the standard library logger. Unknown formats fall
// back to console.
func New(w io.Writer, format, level string) ports.Logger {
	if w == nil {
		w = os.Stderr
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "plain":
		return NewStdLoggerTo(w, ParseLevel(level))
	case "json":
		return NewZeroLogger(w, level, false)
	default:
		return NewZeroLogger(w, level, true)
	}
}
