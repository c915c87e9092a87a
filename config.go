package ion

import (
	"time"

	"github.com/JupiterMetaLabs/ioninstr/internal/config"
)

// Config holds the complete observability configuration: logging sinks,
// trace and metric export, and instrumentation defaults.
type Config = config.Config

// ConsoleConfig configures console (stdout/stderr) output.
type ConsoleConfig = config.ConsoleConfig

// FileConfig configures file output with rotation.
type FileConfig = config.FileConfig

// OTELConfig configures OpenTelemetry log export.
type OTELConfig = config.OTELConfig

// TracingConfig configures the tracer provider.
type TracingConfig = config.TracingConfig

// MetricsConfig configures the meter provider.
type MetricsConfig = config.MetricsConfig

// InstrumentationConfig holds the defaults read by the middleware packages.
type InstrumentationConfig = config.InstrumentationConfig

// Default returns a Config with production defaults: JSON console output at
// info level, no export.
func Default() Config {
	return Config{
		Level:       "info",
		ServiceName: "unknown",
		Console: ConsoleConfig{
			Enabled:        true,
			Format:         "json",
			Color:          true,
			ErrorsToStderr: true,
		},
		File: FileConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			MaxBackups: 5,
			Compress:   true,
		},
		OTEL: OTELConfig{
			Protocol:       "grpc",
			Timeout:        10 * time.Second,
			BatchSize:      512,
			ExportInterval: 5 * time.Second,
		},
		Tracing: TracingConfig{
			Sampler:     "always",
			Propagators: []string{"tracecontext", "baggage"},
		},
		Metrics: MetricsConfig{
			Protocol: "grpc",
			Interval: 15 * time.Second,
		},
	}
}

// Development returns a Config for local work: pretty debug output.
func Development() Config {
	cfg := Default()
	cfg.Level = "debug"
	cfg.Development = true
	cfg.Console.Format = "pretty"
	return cfg
}
