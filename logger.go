package texcache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for texcache and its sub-packages.
// By default, texcache produces no log output. Call SetLogger to enable logging.
//
// The logger is also handed to the wgpu HAL so backend diagnostics end up
// in the same sink. Pass nil to restore the silent default.
//
// Log levels used by texcache:
//   - [slog.LevelDebug]: surface and view creation, barrier batches, staging sizes
//   - [slog.LevelInfo]: manager lifecycle
//   - [slog.LevelWarn]: skipped self-copies, tracer misuse, degraded configurations
//   - [slog.LevelError]: unrecognized configurations in diagnostic dumps
//
// Example:
//
//	texcache.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	hal.SetLogger(l)
}

// Logger returns the current logger used by texcache.
// Sub-packages (regtrace, dump) call this to share the same configuration.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// slogger returns the package logger for internal use.
func slogger() *slog.Logger {
	return loggerPtr.Load()
}
