package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements ports.Logger on top of zerolog. It backs
// LOG_FORMAT=json and LOG_FORMAT=console.
type ZeroLogger struct {
	zl zerolog.Logger
}

// NewZeroLogger writes JSON lines to w, or human-readable console output when
// console is true.
func NewZeroLogger(w io.Writer, level string, console bool) *ZeroLogger {
	if w == nil {
		w = os.Stdout
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &ZeroLogger{zl: zerolog.New(w).With().Timestamp().Logger().Level(lvl)}
}

func (l *ZeroLogger) emit(ctx context.Context, ev *zerolog.Event, msg string, fields []map[string]interface{}) {
	if ev == nil {
		return
	}
	merged := collectFields(ctx, fields)
	for _, k := range sortedKeys(merged) {
		ev = ev.Interface(k, merged[k])
	}
	ev.Msg(msg)
}

// Debug logs a message at Debug level.
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, l.zl.Debug(), msg, fields)
}

// Info logs a message at Info level.
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, l.zl.Info(), msg, fields)
}

// Warn logs a message at Warning level.
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, l.zl.Warn(), msg, fields)
}

// Error logs an error message at Error level.
func (l *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.emit(ctx, l.zl.Error().Err(err), msg, fields)
}
