// Package iongrpc instruments gRPC servers and clients through stats
// handlers.
//
// Server instrumentation using stats handler:
//
//	server := grpc.NewServer(
//	    grpc.StatsHandler(iongrpc.ServerHandler()),
//	)
//
// Client instrumentation using stats handler:
//
//	conn, err := grpc.NewClient(addr,
//	    grpc.WithStatsHandler(iongrpc.ClientHandler()),
//	)
package iongrpc

import (
	ion "github.com/JupiterMetaLabs/ioninstr"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/stats"
)

// ScopeName is the instrumentation scope of the spans and metrics recorded
// by this package.
const ScopeName = "github.com/JupiterMetaLabs/ioninstr/middleware/iongrpc"

// Filter reports whether an RPC should be traced.
type Filter func(info *stats.RPCTagInfo) bool

// --- Options ---

type options struct {
	filter         Filter
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagators    propagation.TextMapPropagator
	messageEvents  bool
	logger         ion.Logger
}

func defaultOptions() *options {
	return &options{messageEvents: true}
}

// Option configures gRPC instrumentation.
type Option interface {
	apply(*options)
}

type filterOption struct {
	filter Filter
}

func (f filterOption) apply(o *options) { o.filter = f.filter }

// WithFilter sets a filter function to exclude methods from tracing.
// Return false to skip tracing for the given RPC.
//
// Example:
//
//	iongrpc.ServerHandler(iongrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
//	    return info.FullMethodName != "/grpc.health.v1.Health/Check"
//	}))
func WithFilter(filter Filter) Option {
	return filterOption{filter: filter}
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

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

// WithPropagators sets the propagators used on gRPC metadata. The global
// propagator is used otherwise.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return optionFunc(func(o *options) { o.propagators = p })
}

// WithMessageEvents toggles the "message" span events recorded for every
// sent and received message. Enabled by default.
func WithMessageEvents(enabled bool) Option {
	return optionFunc(func(o *options) { o.messageEvents = enabled })
}

// WithLogger sets the logger receiving instrumentation warnings.
func WithLogger(l ion.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

// WithIon wires the providers, propagators and logger of app.
func WithIon(app *ion.Ion) Option {
	return optionFunc(func(o *options) {
		o.tracerProvider = app.TracerProvider()
		o.meterProvider = app.MeterProvider()
		o.propagators = app.Propagators()
		o.logger = app.Named("ion.grpc")
	})
}
