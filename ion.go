package ion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JupiterMetaLabs/ioninstr/internal/core"
	internalotel "github.com/JupiterMetaLabs/ioninstr/internal/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Ion owns the logger and the tracer and meter providers of a process.
// It implements Logger directly.
//
//	app, warnings, err := ion.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown(context.Background())
//	ion.SetGlobal(app)
//
//	mux.Handle("/", ionhttp.Handler(h, ionhttp.WithTracerProvider(app.TracerProvider())))
type Ion struct {
	logger          *zapLogger
	serviceName     string
	version         string
	tracerProvider  *internalotel.TracerProvider
	meterProvider   *internalotel.MeterProvider
	propagators     propagation.TextMapPropagator
	instrumentation InstrumentationConfig
}

// Warning is a non-fatal initialization issue. Ion degrades to a working
// fallback (console-only logging, no-op tracing) instead of failing.
type Warning struct {
	Component string // "otel", "tracing", "metrics", "propagators"
	Err       error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Component, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// New creates an Ion from cfg. The returned Ion is always usable; optional
// components that fail to start are reported as warnings.
func New(cfg Config) (*Ion, []Warning, error) {
	return newIon(cfg, core.Sinks{})
}

func newIon(cfg Config, sinks core.Sinks) (*Ion, []Warning, error) {
	var warnings []Warning

	app := &Ion{
		serviceName:     cfg.ServiceName,
		version:         cfg.Version,
		instrumentation: cfg.Instrumentation,
	}

	logger, err := newZapLogger(cfg, sinks)
	if err != nil {
		warnings = append(warnings, Warning{
			Component: "otel",
			Err:       fmt.Errorf("failed to init OTEL logger: %w (using console logger)", err),
		})
		cfg.OTEL.Enabled = false
		logger, err = newZapLogger(cfg, sinks)
		if err != nil {
			return nil, warnings, fmt.Errorf("ion: build logger: %w", err)
		}
	}
	app.logger = logger

	props, err := internalotel.ParsePropagators(cfg.Tracing.Propagators)
	if err != nil {
		warnings = append(warnings, Warning{Component: "propagators", Err: err})
		props, _ = internalotel.ParsePropagators(nil)
	}
	app.propagators = props

	if cfg.Tracing.Enabled {
		tracingCfg := cfg.Tracing
		tracingCfg.Propagators = nil
		if tracingCfg.Endpoint == "" {
			tracingCfg.Endpoint = cfg.OTEL.Endpoint
		}
		if tracingCfg.Protocol == "" {
			tracingCfg.Protocol = cfg.OTEL.Protocol
		}
		if !tracingCfg.Insecure && cfg.OTEL.Insecure {
			tracingCfg.Insecure = true
		}
		if tracingCfg.Username == "" && tracingCfg.Password == "" {
			tracingCfg.Username, tracingCfg.Password = cfg.OTEL.Username, cfg.OTEL.Password
		}

		tp, err := internalotel.SetupTracerProvider(tracingCfg, cfg.ServiceName, cfg.Version)
		if err != nil {
			warnings = append(warnings, Warning{
				Component: "tracing",
				Err:       fmt.Errorf("failed to init tracing: %w (tracing disabled)", err),
			})
		} else {
			app.tracerProvider = tp
		}
	}
	otel.SetTextMapPropagator(props)

	if cfg.Metrics.Enabled {
		mp, err := internalotel.SetupMeterProvider(cfg.Metrics, cfg.ServiceName, cfg.Version)
		if err != nil {
			warnings = append(warnings, Warning{
				Component: "metrics",
				Err:       fmt.Errorf("failed to init metrics: %w (metrics disabled)", err),
			})
		} else {
			app.meterProvider = mp
		}
	}

	return app, warnings, nil
}

func (i *Ion) Debug(ctx context.Context, msg string, fields ...Field) {
	i.logger.Debug(ctx, msg, fields...)
}

func (i *Ion) Info(ctx context.Context, msg string, fields ...Field) {
	i.logger.Info(ctx, msg, fields...)
}

func (i *Ion) Warn(ctx context.Context, msg string, fields ...Field) {
	i.logger.Warn(ctx, msg, fields...)
}

func (i *Ion) Error(ctx context.Context, msg string, err error, fields ...Field) {
	i.logger.Error(ctx, msg, err, fields...)
}

func (i *Ion) Critical(ctx context.Context, msg string, err error, fields ...Field) {
	i.logger.Critical(ctx, msg, err, fields...)
}

func (i *Ion) With(fields ...Field) Logger {
	return i.logger.With(fields...)
}

func (i *Ion) Named(name string) Logger {
	return i.logger.Named(name)
}

func (i *Ion) Sync() error {
	return i.logger.Sync()
}

func (i *Ion) SetLevel(level string) {
	i.logger.SetLevel(level)
}

func (i *Ion) GetLevel() string {
	return i.logger.GetLevel()
}

// TracerProvider returns the configured provider, or the global one when
// tracing is disabled.
func (i *Ion) TracerProvider() trace.TracerProvider {
	if tp := i.tracerProvider.Provider(); tp != nil {
		return tp
	}
	return otel.GetTracerProvider()
}

// Tracer returns a named tracer from TracerProvider.
func (i *Ion) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return i.TracerProvider().Tracer(name, opts...)
}

// MeterProvider returns the configured provider, or the global one when
// metrics are disabled.
func (i *Ion) MeterProvider() metric.MeterProvider {
	if mp := i.meterProvider.Provider(); mp != nil {
		return mp
	}
	return otel.GetMeterProvider()
}

// Meter returns a named meter from MeterProvider.
func (i *Ion) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return i.MeterProvider().Meter(name, opts...)
}

// Propagators returns the configured text map propagator.
func (i *Ion) Propagators() propagation.TextMapPropagator {
	return i.propagators
}

// Instrumentation returns the instrumentation defaults from the config.
func (i *Ion) Instrumentation() InstrumentationConfig {
	return i.instrumentation
}

// MetricsHandler serves the Prometheus scrape endpoint. It returns nil unless
// Metrics.Protocol is "prometheus".
func (i *Ion) MetricsHandler() http.Handler {
	return i.meterProvider.Handler()
}

// Shutdown flushes and stops metrics, tracing and logging, in that order.
func (i *Ion) Shutdown(ctx context.Context) error {
	var errs []error
	if err := i.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	if err := i.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := i.logger.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	return errors.Join(errs...)
}
