// Package ionaws instruments AWS SDK for Go v2 clients, with trace
// correlation for Amazon SQS.
//
// Client instrumentation is installed as SDK middleware:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	ionaws.AppendMiddlewares(&cfg.APIOptions)
//	client := sqs.NewFromConfig(cfg)
//
// Every API call becomes one span named "<Service>.<Operation>", CLIENT for
// most operations and PRODUCER for SQS sends. Outbound requests carry an
// X-Amzn-Trace-Id header and sent messages carry the trace context in their
// attributes.
//
// Received messages are processed through a MessageIterator, which opens a
// CONSUMER span per message parented on the message's AWSTraceHeader:
//
//	out, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{QueueUrl: &url})
//	it := ionaws.TracingMessages(ctx, out)
//	defer it.Close()
//	for it.Next() {
//	    if err := it.Err(); err != nil {
//	        continue
//	    }
//	    it.Done(handle(it.Context(), it.Message()))
//	}
package ionaws

import (
	ion "github.com/JupiterMetaLabs/ioninstr"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of the spans and metrics recorded
// by this package.
const ScopeName = "github.com/JupiterMetaLabs/ioninstr/middleware/ionaws"

// --- Options ---

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	logger         ion.Logger
	experimental   bool
	receiveSpans   bool
	messageHeaders []string
}

func defaultOptions() *options {
	return &options{propagator: xray.Propagator{}}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	if o.propagator == nil {
		o.propagator = xray.Propagator{}
	}
	return o
}

// Option configures AWS SDK instrumentation.
type Option interface {
	apply(*options)
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

// WithPropagator sets the propagator written to request headers and SQS
// message attributes. Defaults to the X-Ray propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return optionFunc(func(o *options) { o.propagator = p })
}

// WithLogger sets the logger receiving instrumentation warnings.
func WithLogger(l ion.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

// WithCapturedExperimentalAttributes records attributes outside the stable
// conventions, currently aws.extended_request_id.
func WithCapturedExperimentalAttributes(enabled bool) Option {
	return optionFunc(func(o *options) { o.experimental = enabled })
}

// WithMessagingReceiveInstrumentation emits a CONSUMER "receive" span for
// every ReceiveMessage call that returned messages, linked to the producer
// of each message.
func WithMessagingReceiveInstrumentation(enabled bool) Option {
	return optionFunc(func(o *options) { o.receiveSpans = enabled })
}

// WithCapturedMessageAttributes records the named SQS message attributes as
// messaging.header.<name> attributes on send and process spans.
func WithCapturedMessageAttributes(names ...string) Option {
	return optionFunc(func(o *options) { o.messageHeaders = names })
}

// WithIon wires the providers, logger and instrumentation settings of app.
// The propagator stays the X-Ray propagator.
func WithIon(app *ion.Ion) Option {
	return optionFunc(func(o *options) {
		cfg := app.Instrumentation()
		o.tracerProvider = app.TracerProvider()
		o.meterProvider = app.MeterProvider()
		o.logger = app.Named("ion.aws")
		o.experimental = cfg.ExperimentalAttributes
		o.receiveSpans = cfg.MessagingReceiveTelemetry
	})
}
