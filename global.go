package ion

import (
	"context"
	"sync"
)

var (
	globalMu       sync.RWMutex
	global         *Ion
	fallbackOnce   sync.Once
	fallbackLogger *zapLogger
)

// SetGlobal installs app as the process-wide Ion used by the package-level
// helpers and by instrumentation that was given no logger.
func SetGlobal(app *Ion) {
	globalMu.Lock()
	global = app
	globalMu.Unlock()
}

// L returns the global Ion. It panics when SetGlobal was never called.
func L() *Ion {
	globalMu.RLock()
	g := global
	globalMu.RUnlock()
	if g == nil {
		panic("ion: global not set, call SetGlobal first")
	}
	return g
}

// getLogger returns the global logger, or a console logger with default
// settings when no global is set.
func getLogger() Logger {
	globalMu.RLock()
	g := global
	globalMu.RUnlock()
	if g != nil {
		return g.logger
	}
	fallbackOnce.Do(func() {
		fallbackLogger = mustZapLogger(Default())
	})
	return fallbackLogger
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	getLogger().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	getLogger().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	getLogger().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, err error, fields ...Field) {
	getLogger().Error(ctx, msg, err, fields...)
}

func Critical(ctx context.Context, msg string, err error, fields ...Field) {
	getLogger().Critical(ctx, msg, err, fields...)
}

// Named returns a named child of the global logger.
func Named(name string) Logger {
	return getLogger().Named(name)
}

// Sync flushes the global logger.
func Sync() error {
	globalMu.RLock()
	g := global
	globalMu.RUnlock()
	if g == nil {
		return nil
	}
	return g.Sync()
}
