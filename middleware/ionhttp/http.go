// Package ionhttp instruments net/http servers and clients.
//
// Server middleware creates a SERVER span and duration metrics for each
// incoming request:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /users/{id}", getUser)
//	http.ListenAndServe(":8080", ionhttp.Handler(mux))
//
// Client instrumentation wraps an http.RoundTripper:
//
//	client := ionhttp.Client()
//	resp, err := client.Get("https://api.example.com")
package ionhttp

import (
	"net/http"

	ion "github.com/JupiterMetaLabs/ioninstr"
	"github.com/JupiterMetaLabs/ioninstr/semconv/httpconv"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of the spans and metrics recorded
// by this package.
const ScopeName = "github.com/JupiterMetaLabs/ioninstr/middleware/ionhttp"

// --- Options ---

type options struct {
	filter          func(*http.Request) bool
	requestHeaders  []string
	responseHeaders []string
	experimental    bool
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
	propagators     propagation.TextMapPropagator
	routeFunc       func(*http.Request) string
	logger          ion.Logger
}

func defaultOptions() *options {
	return &options{}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	return o
}

func (o *options) extractorOptions() []httpconv.ExtractorOption {
	return []httpconv.ExtractorOption{
		httpconv.WithCapturedRequestHeaders(o.requestHeaders...),
		httpconv.WithCapturedResponseHeaders(o.responseHeaders...),
		httpconv.WithExperimentalAttributes(o.experimental),
	}
}

// Option configures HTTP instrumentation.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithFilter sets a filter function to exclude requests from tracing.
// Return true to include the request, false to skip.
//
// Example:
//
//	ionhttp.Handler(mux, ionhttp.WithFilter(func(r *http.Request) bool {
//	    return r.URL.Path != "/health"
//	}))
func WithFilter(filter func(r *http.Request) bool) Option {
	return optionFunc(func(o *options) { o.filter = filter })
}

// WithCapturedRequestHeaders records the named request headers as span
// attributes.
func WithCapturedRequestHeaders(names ...string) Option {
	return optionFunc(func(o *options) { o.requestHeaders = names })
}

// WithCapturedResponseHeaders records the named response headers as span
// attributes.
func WithCapturedResponseHeaders(names ...string) Option {
	return optionFunc(func(o *options) { o.responseHeaders = names })
}

// WithExperimentalAttributes records request and response body sizes.
func WithExperimentalAttributes(enabled bool) Option {
	return optionFunc(func(o *options) { o.experimental = enabled })
}

// WithTracerProvider sets the tracer provider. The global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return optionFunc(func(o *options) { o.tracerProvider = tp })
}

// WithMeterProvider sets the meter provider. The global provider is used
// otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return optionFunc(func(o *options) { o.meterProvider = mp })
}

// WithPropagators sets the propagators used to read and write trace context
// headers. The global propagator is used otherwise.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return optionFunc(func(o *options) { o.propagators = p })
}

// WithRouteFunc reports the route of a served request once the wrapped
// handler returned. Use it with routers that do not set Request.Pattern.
func WithRouteFunc(fn func(r *http.Request) string) Option {
	return optionFunc(func(o *options) { o.routeFunc = fn })
}

// WithLogger sets the logger receiving instrumentation warnings.
func WithLogger(l ion.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

// WithConfig applies the instrumentation section of an ion configuration.
func WithConfig(cfg ion.InstrumentationConfig) Option {
	return optionFunc(func(o *options) {
		o.requestHeaders = cfg.CapturedRequestHeaders
		o.responseHeaders = cfg.CapturedResponseHeaders
		o.experimental = cfg.ExperimentalAttributes
	})
}

// WithIon wires the providers, propagators, logger and instrumentation
// settings of app.
func WithIon(app *ion.Ion) Option {
	return optionFunc(func(o *options) {
		o.tracerProvider = app.TracerProvider()
		o.meterProvider = app.MeterProvider()
		o.propagators = app.Propagators()
		o.logger = app.Named("ion.http")
		WithConfig(app.Instrumentation()).apply(o)
	})
}
