package instrumenter

import (
	"context"

	ion "github.com/JupiterMetaLabs/ioninstr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles an Instrumenter. A Builder is not safe for concurrent use;
// the Instrumenter it builds is.
type Builder[REQ, RES any] struct {
	name     string
	version  string
	category string
	enabled  bool

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagators    propagation.TextMapPropagator
	logger         ion.Logger

	spanName    SpanNameExtractor[REQ]
	spanStatus  SpanStatusExtractor[REQ, RES]
	nameUpdater SpanNameUpdater[REQ]
	errorCause  ErrorCauseExtractor

	extractors  []AttributesExtractor[REQ, RES]
	customizers []ContextCustomizer[REQ]
	links       []SpanLinksExtractor[REQ]
	listeners   []OperationListener
	metrics     []OperationMetrics
}

// NewBuilder starts an Instrumenter named after the instrumentation library.
// The name is also the tracer and meter scope and the default suppression
// category.
func NewBuilder[REQ, RES any](name string, spanName SpanNameExtractor[REQ]) *Builder[REQ, RES] {
	return &Builder[REQ, RES]{
		name:       name,
		category:   name,
		enabled:    true,
		spanName:   spanName,
		spanStatus: DefaultSpanStatus[REQ, RES],
	}
}

// SetVersion sets the instrumentation scope version.
func (b *Builder[REQ, RES]) SetVersion(version string) *Builder[REQ, RES] {
	b.version = version
	return b
}

// SetSuppressionCategory groups instrumenters that must not nest spans of the
// same kind inside each other.
func (b *Builder[REQ, RES]) SetSuppressionCategory(category string) *Builder[REQ, RES] {
	b.category = category
	return b
}

// SetEnabled turns the instrumenter off when enabled is false: ShouldStart
// then always returns false.
func (b *Builder[REQ, RES]) SetEnabled(enabled bool) *Builder[REQ, RES] {
	b.enabled = enabled
	return b
}

// SetTracerProvider overrides the global TracerProvider.
func (b *Builder[REQ, RES]) SetTracerProvider(tp trace.TracerProvider) *Builder[REQ, RES] {
	b.tracerProvider = tp
	return b
}

// SetMeterProvider overrides the global MeterProvider used by operation metrics.
func (b *Builder[REQ, RES]) SetMeterProvider(mp metric.MeterProvider) *Builder[REQ, RES] {
	b.meterProvider = mp
	return b
}

// SetPropagators overrides the global TextMapPropagator.
func (b *Builder[REQ, RES]) SetPropagators(p propagation.TextMapPropagator) *Builder[REQ, RES] {
	b.propagators = p
	return b
}

// SetLogger sets the logger that receives recovered instrumentation failures.
func (b *Builder[REQ, RES]) SetLogger(l ion.Logger) *Builder[REQ, RES] {
	b.logger = l
	return b
}

// AddAttributesExtractor appends extractors. Extractors run in registration
// order; a later extractor overwrites keys written by an earlier one.
func (b *Builder[REQ, RES]) AddAttributesExtractor(e ...AttributesExtractor[REQ, RES]) *Builder[REQ, RES] {
	for _, x := range e {
		if x != nil {
			b.extractors = append(b.extractors, x)
		}
	}
	return b
}

// SetSpanStatusExtractor replaces DefaultSpanStatus.
func (b *Builder[REQ, RES]) SetSpanStatusExtractor(s SpanStatusExtractor[REQ, RES]) *Builder[REQ, RES] {
	if s != nil {
		b.spanStatus = s
	}
	return b
}

// SetSpanNameUpdater installs a hook that may rename the span at End.
func (b *Builder[REQ, RES]) SetSpanNameUpdater(u SpanNameUpdater[REQ]) *Builder[REQ, RES] {
	b.nameUpdater = u
	return b
}

// AddContextCustomizer appends customizers, run in order after the span starts.
func (b *Builder[REQ, RES]) AddContextCustomizer(c ...ContextCustomizer[REQ]) *Builder[REQ, RES] {
	for _, x := range c {
		if x != nil {
			b.customizers = append(b.customizers, x)
		}
	}
	return b
}

// AddSpanLinksExtractor appends extractors whose links are attached to the
// span at start.
func (b *Builder[REQ, RES]) AddSpanLinksExtractor(e ...SpanLinksExtractor[REQ]) *Builder[REQ, RES] {
	for _, x := range e {
		if x != nil {
			b.links = append(b.links, x)
		}
	}
	return b
}

// AddOperationListener appends listeners. OnStart runs in registration order
// and OnEnd in reverse.
func (b *Builder[REQ, RES]) AddOperationListener(l ...OperationListener) *Builder[REQ, RES] {
	for _, x := range l {
		if x != nil {
			b.listeners = append(b.listeners, x)
		}
	}
	return b
}

// AddOperationMetrics appends listeners created from the instrumenter's Meter
// at build time.
func (b *Builder[REQ, RES]) AddOperationMetrics(m ...OperationMetrics) *Builder[REQ, RES] {
	for _, x := range m {
		if x != nil {
			b.metrics = append(b.metrics, x)
		}
	}
	return b
}

// SetErrorCauseExtractor installs an unwrapping hook applied to errors before
// they reach extractors and the span.
func (b *Builder[REQ, RES]) SetErrorCauseExtractor(e ErrorCauseExtractor) *Builder[REQ, RES] {
	b.errorCause = e
	return b
}

// BuildClient builds a CLIENT instrumenter that injects context through setter.
func (b *Builder[REQ, RES]) BuildClient(setter CarrierFunc[REQ]) *Instrumenter[REQ, RES] {
	return b.build(AlwaysKind[REQ](trace.SpanKindClient), setter, nil)
}

// BuildProducer builds a PRODUCER instrumenter that injects context through setter.
func (b *Builder[REQ, RES]) BuildProducer(setter CarrierFunc[REQ]) *Instrumenter[REQ, RES] {
	return b.build(AlwaysKind[REQ](trace.SpanKindProducer), setter, nil)
}

// BuildServer builds a SERVER instrumenter that extracts the remote parent
// through getter.
func (b *Builder[REQ, RES]) BuildServer(getter CarrierFunc[REQ]) *Instrumenter[REQ, RES] {
	return b.build(AlwaysKind[REQ](trace.SpanKindServer), nil, getter)
}

// BuildConsumer builds a CONSUMER instrumenter that extracts the remote parent
// through getter.
func (b *Builder[REQ, RES]) BuildConsumer(getter CarrierFunc[REQ]) *Instrumenter[REQ, RES] {
	return b.build(AlwaysKind[REQ](trace.SpanKindConsumer), nil, getter)
}

// Build builds an instrumenter whose span kind is chosen per request.
// It neither injects nor extracts context.
func (b *Builder[REQ, RES]) Build(kind SpanKindExtractor[REQ]) *Instrumenter[REQ, RES] {
	if kind == nil {
		kind = AlwaysKind[REQ](trace.SpanKindInternal)
	}
	return b.build(kind, nil, nil)
}

func (b *Builder[REQ, RES]) build(kind SpanKindExtractor[REQ], setter, getter CarrierFunc[REQ]) *Instrumenter[REQ, RES] {
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := b.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	props := b.propagators
	if props == nil {
		props = defaultPropagators()
	}

	var tracerOpts []trace.TracerOption
	var meterOpts []metric.MeterOption
	if b.version != "" {
		tracerOpts = append(tracerOpts, trace.WithInstrumentationVersion(b.version))
		meterOpts = append(meterOpts, metric.WithInstrumentationVersion(b.version))
	}

	spanName := b.spanName
	if spanName == nil {
		name := b.name
		spanName = func(REQ) string { return name }
	}

	inst := &Instrumenter[REQ, RES]{
		name:        b.name,
		category:    b.category,
		enabled:     b.enabled,
		tracer:      tp.Tracer(b.name, tracerOpts...),
		propagators: props,
		logger:      b.logger,
		spanName:    spanName,
		spanKind:    kind,
		spanStatus:  b.spanStatus,
		nameUpdater: b.nameUpdater,
		errorCause:  b.errorCause,
		extractors:  append([]AttributesExtractor[REQ, RES](nil), b.extractors...),
		customizers: append([]ContextCustomizer[REQ](nil), b.customizers...),
		links:       append([]SpanLinksExtractor[REQ](nil), b.links...),
		listeners:   append([]OperationListener(nil), b.listeners...),
		setter:      setter,
		getter:      getter,
	}

	if len(b.metrics) > 0 {
		meter := mp.Meter(b.name, meterOpts...)
		for _, m := range b.metrics {
			inst.safely(context.Background(), "operation metrics", func() {
				if l := m(meter); l != nil {
					inst.listeners = append(inst.listeners, l)
				}
			})
		}
	}
	return inst
}
