// Package logger provides structured logging setup for devteam.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/devteam/internal/config"
)

// Runtime is a configured logger together with its runtime controls.
type Runtime struct {
	Logger *slog.Logger
	level  *slog.LevelVar
	closer Closer
}

// New creates a logger from the given Logging config writing JSON to stdout.
func New(cfg config.Logging) *Runtime {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger writing JSON to w. Every record carries a
// "service" attribute plus request and execution IDs found on the context.
func NewWithWriter(cfg config.Logging, w io.Writer) *Runtime {
	level := &slog.LevelVar{}
	level.Set(parseLevel(cfg.Level))

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	var closer Closer = nopCloser{}
	if cfg.Async {
		buf := cfg.AsyncBuffer
		if buf <= 0 {
			buf = 4096
		}
		ah := NewAsyncHandler(handler, buf, 2)
		handler, closer = ah, ah
	}

	return &Runtime{
		Logger: slog.New(&contextHandler{inner: handler}).With("service", cfg.Service),
		level:  level,
		closer: closer,
	}
}

// SetLevel changes the minimum level of the running logger.
func (r *Runtime) SetLevel(s string) {
	r.level.Set(parseLevel(s))
}

// Level returns the current minimum level.
func (r *Runtime) Level() slog.Level {
	return r.level.Level()
}

// Close flushes buffered records when running asynchronously.
func (r *Runtime) Close() {
	r.closer.Close()
}

// parseLevel converts a string log level to slog.Level.
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
