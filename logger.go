package ion

import "context"

// Logger is the context-first logging interface. The context passed to each
// call supplies trace_id, span_id, request_id and user_id.
// All methods are safe for concurrent use.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)

	// Error logs at error level. err may be nil.
	Error(ctx context.Context, msg string, err error, fields ...Field)

	// Critical logs at fatal level and returns. It never exits the process.
	Critical(ctx context.Context, msg string, err error, fields ...Field)

	// With returns a child logger that adds fields to every entry.
	With(fields ...Field) Logger

	// Named returns a child logger with name appended to the logger name.
	Named(name string) Logger

	// Sync flushes buffered entries.
	Sync() error

	// Shutdown flushes entries and stops OTEL log export.
	Shutdown(ctx context.Context) error

	// SetLevel changes the level at runtime: debug, info, warn, error.
	SetLevel(level string)

	GetLevel() string
}
