// Package config holds the configuration types shared by the public ion
// package and its internal setup code.
package config

import "time"

// Config holds the complete observability configuration.
type Config struct {
	// Level sets the minimum log level: debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level" json:"level" env:"LOG_LEVEL"`

	// Development enables pretty console output, caller information and
	// stack traces on error.
	Development bool `yaml:"development" json:"development" env:"LOG_DEVELOPMENT"`

	// ServiceName identifies this service in logs, traces and metrics.
	// Default: "unknown"
	ServiceName string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`

	// Version is the application version.
	Version string `yaml:"version" json:"version" env:"SERVICE_VERSION"`

	Console ConsoleConfig `yaml:"console" json:"console"`
	File    FileConfig    `yaml:"file" json:"file"`

	// OTEL configures OpenTelemetry log export.
	OTEL OTELConfig `yaml:"otel" json:"otel"`

	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Instrumentation holds the defaults applied by the HTTP, gRPC and AWS
	// instrumentation packages.
	Instrumentation InstrumentationConfig `yaml:"instrumentation" json:"instrumentation"`
}

// ConsoleConfig configures console (stdout/stderr) output.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Format: "json", "pretty" or "systemd".
	// Default: "json" (production), "pretty" (development)
	Format string `yaml:"format" json:"format"`

	// Color enables ANSI colors in pretty format.
	Color bool `yaml:"color" json:"color"`

	// ErrorsToStderr sends warn and above to stderr, the rest to stdout.
	ErrorsToStderr bool `yaml:"errors_to_stderr" json:"errors_to_stderr"`

	// Level overrides the global level for this sink.
	Level string `yaml:"level" json:"level"`
}

// FileConfig configures file output with rotation.
type FileConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the log file path.
	Path string `yaml:"path" json:"path"`

	// MaxSizeMB is the maximum size in MB before rotation.
	// Default: 100
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`

	// MaxAgeDays is the maximum age in days to retain old logs.
	// Default: 7
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days"`

	// MaxBackups is the maximum number of old log files to keep.
	// Default: 5
	MaxBackups int `yaml:"max_backups" json:"max_backups"`

	Compress bool `yaml:"compress" json:"compress"`

	// Level overrides the global level for this sink.
	Level string `yaml:"level" json:"level"`
}

// OTELConfig configures OpenTelemetry log export.
type OTELConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Protocol: "grpc" or "http".
	// Default: "grpc"
	Protocol string `yaml:"protocol" json:"protocol"`

	// Endpoint is the collector endpoint. A scheme, when present, decides TLS.
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_ENDPOINT"`

	Insecure bool `yaml:"insecure" json:"insecure"`

	// Username and Password become a basic Authorization header.
	Username string `yaml:"username" json:"username" env:"OTEL_USERNAME"`
	Password string `yaml:"password" json:"password" env:"OTEL_PASSWORD"`

	Headers map[string]string `yaml:"headers" json:"headers"`

	// Default: 10s
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Default: 512
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Default: 5s
	ExportInterval time.Duration `yaml:"export_interval" json:"export_interval"`

	// Attributes are additional resource attributes.
	Attributes map[string]string `yaml:"attributes" json:"attributes"`

	// Level overrides the global level for this sink.
	Level string `yaml:"level" json:"level"`
}

// TracingConfig configures the tracer provider.
// Empty Endpoint, Protocol and Insecure fall back to the OTEL section.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"TRACING_ENABLED"`

	// Protocol: "grpc", "http" or "stdout".
	Protocol string `yaml:"protocol" json:"protocol"`

	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// Sampler: "always", "never" or "ratio:<fraction>".
	// Default: "always"
	Sampler string `yaml:"sampler" json:"sampler"`

	// Propagators lists the global propagators: "tracecontext", "baggage",
	// "xray".
	// Default: ["tracecontext", "baggage"]
	Propagators []string `yaml:"propagators" json:"propagators"`

	BatchSize      int               `yaml:"batch_size" json:"batch_size"`
	ExportInterval time.Duration     `yaml:"export_interval" json:"export_interval"`
	Timeout        time.Duration     `yaml:"timeout" json:"timeout"`
	Headers        map[string]string `yaml:"headers" json:"headers"`
	Attributes     map[string]string `yaml:"attributes" json:"attributes"`
}

// MetricsConfig configures the meter provider.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"METRICS_ENABLED"`

	// Protocol: "grpc", "http", "stdout" or "prometheus".
	// Default: "grpc"
	Protocol string `yaml:"protocol" json:"protocol"`

	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	Insecure bool              `yaml:"insecure" json:"insecure"`
	Username string            `yaml:"username" json:"username"`
	Password string            `yaml:"password" json:"password"`
	Headers  map[string]string `yaml:"headers" json:"headers"`
	Timeout  time.Duration     `yaml:"timeout" json:"timeout"`

	// Interval is the push interval for OTLP and stdout exporters.
	// Default: 15s
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// InstrumentationConfig holds instrumentation defaults.
type InstrumentationConfig struct {
	// CapturedRequestHeaders are HTTP request headers recorded as
	// http.request.header.<name> attributes.
	CapturedRequestHeaders []string `yaml:"captured_request_headers" json:"captured_request_headers"`

	// CapturedResponseHeaders are HTTP response headers recorded as
	// http.response.header.<name> attributes.
	CapturedResponseHeaders []string `yaml:"captured_response_headers" json:"captured_response_headers"`

	// ExperimentalAttributes enables attributes outside the stable
	// conventions (body sizes, AWS SQS queue URL, and similar).
	ExperimentalAttributes bool `yaml:"experimental_attributes" json:"experimental_attributes"`

	// MessagingReceiveTelemetry enables the SQS receive span linked to
	// every received message.
	MessagingReceiveTelemetry bool `yaml:"messaging_receive_telemetry" json:"messaging_receive_telemetry"`
}

// WithLevel returns a copy of the config with the specified level.
func (c Config) WithLevel(level string) Config {
	c.Level = level
	return c
}

// WithService returns a copy of the config with the specified service name.
func (c Config) WithService(name string) Config {
	c.ServiceName = name
	return c
}

// WithOTEL returns a copy of the config with OTLP log export enabled.
func (c Config) WithOTEL(endpoint string) Config {
	c.OTEL.Enabled = true
	c.OTEL.Endpoint = endpoint
	return c
}

// WithFile returns a copy of the config with file logging enabled.
func (c Config) WithFile(path string) Config {
	c.File.Enabled = true
	c.File.Path = path
	return c
}

// WithTracing returns a copy of the config with trace export enabled.
// An empty endpoint reuses the OTEL log endpoint.
func (c Config) WithTracing(endpoint string) Config {
	c.Tracing.Enabled = true
	c.Tracing.Endpoint = endpoint
	return c
}

// WithMetrics returns a copy of the config with metrics enabled over protocol
// ("grpc", "http", "stdout" or "prometheus").
func (c Config) WithMetrics(protocol, endpoint string) Config {
	c.Metrics.Enabled = true
	c.Metrics.Protocol = protocol
	c.Metrics.Endpoint = endpoint
	return c
}

// WithCapturedHeaders returns a copy of the config that records the named
// HTTP request and response headers as span attributes.
func (c Config) WithCapturedHeaders(request, response []string) Config {
	c.Instrumentation.CapturedRequestHeaders = append([]string(nil), request...)
	c.Instrumentation.CapturedResponseHeaders = append([]string(nil), response...)
	return c
}
