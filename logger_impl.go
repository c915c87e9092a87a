package ion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JupiterMetaLabs/ioninstr/internal/core"
	internalotel "github.com/JupiterMetaLabs/ioninstr/internal/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger implements Logger on top of zap.
type zapLogger struct {
	zap          *zap.Logger
	atomicLvl    zap.AtomicLevel
	otelProvider *internalotel.LogProvider
}

func newZapLogger(cfg Config, sinks core.Sinks) (*zapLogger, error) {
	res, err := core.NewZapLogger(cfg, sinks)
	if err != nil {
		return nil, err
	}
	return &zapLogger{
		zap:          res.Logger,
		atomicLvl:    res.AtomicLevel,
		otelProvider: res.OTELProvider,
	}, nil
}

// mustZapLogger builds a logger without OTEL export, which cannot fail.
func mustZapLogger(cfg Config) *zapLogger {
	cfg.OTEL.Enabled = false
	l, err := newZapLogger(cfg, core.Sinks{})
	if err != nil {
		return &zapLogger{zap: zap.NewNop(), atomicLvl: zap.NewAtomicLevel()}
	}
	return l
}

// prepareFields converts fields and appends the context-derived ones.
func (l *zapLogger) prepareFields(ctx context.Context, fields []Field) []zap.Field {
	zapFields := toZapFields(fields)

	// Background and TODO never carry trace information.
	if ctx != nil && ctx != context.Background() && ctx != context.TODO() {
		zapFields = append(zapFields, extractContextZapFields(ctx)...)
		zapFields = append(zapFields, zap.Reflect(core.SentinelKey, ctx))
	}
	return zapFields
}

// The level checks ask the cores, which honor both the atomic level and any
// per-sink level.
func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	if !l.zap.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.zap.Debug(msg, l.prepareFields(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	if !l.zap.Core().Enabled(zapcore.InfoLevel) {
		return
	}
	l.zap.Info(msg, l.prepareFields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	if !l.zap.Core().Enabled(zapcore.WarnLevel) {
		return
	}
	l.zap.Warn(msg, l.prepareFields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...Field) {
	if !l.zap.Core().Enabled(zapcore.ErrorLevel) {
		return
	}
	zapFields := l.prepareFields(ctx, fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.zap.Error(msg, zapFields...)
}

// Critical logs at fatal level; the factory installs a fatal hook that
// returns instead of exiting.
func (l *zapLogger) Critical(ctx context.Context, msg string, err error, fields ...Field) {
	zapFields := l.prepareFields(ctx, fields)
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	l.zap.Fatal(msg, zapFields...)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{
		zap:          l.zap.With(toZapFields(fields)...),
		atomicLvl:    l.atomicLvl,
		otelProvider: l.otelProvider,
	}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{
		zap:          l.zap.Named(name),
		atomicLvl:    l.atomicLvl,
		otelProvider: l.otelProvider,
	}
}

func (l *zapLogger) Sync() error {
	return l.zap.Sync()
}

func (l *zapLogger) Shutdown(ctx context.Context) error {
	var errs []error
	if l.otelProvider != nil {
		if err := l.otelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel: %w", err))
		}
	}
	if err := l.zap.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("zap sync: %w", err))
	}
	return errors.Join(errs...)
}

func (l *zapLogger) SetLevel(level string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		l.atomicLvl.SetLevel(lvl)
	}
}

func (l *zapLogger) GetLevel() string {
	return l.atomicLvl.Level().String()
}

func convertField(f Field) zap.Field {
	switch f.Type {
	case StringType:
		return zap.String(f.Key, f.StringVal)
	case Int64Type:
		return zap.Int64(f.Key, f.Integer)
	case Uint64Type:
		if v, ok := f.Interface.(uint64); ok {
			return zap.Uint64(f.Key, v)
		}
		return zap.Any(f.Key, f.Interface)
	case Float64Type:
		return zap.Float64(f.Key, f.Float)
	case BoolType:
		return zap.Bool(f.Key, f.Integer == 1)
	case DurationType:
		return zap.Duration(f.Key, time.Duration(f.Integer))
	case StringsType:
		if v, ok := f.Interface.([]string); ok {
			return zap.Strings(f.Key, v)
		}
		return zap.Any(f.Key, f.Interface)
	case ErrorType:
		if err, ok := f.Interface.(error); ok {
			return zap.NamedError(f.Key, err)
		}
		return zap.Any(f.Key, f.Interface)
	default:
		return zap.Any(f.Key, f.Interface)
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zapFields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zapFields = append(zapFields, convertField(f))
	}
	return zapFields
}
