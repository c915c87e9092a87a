package instrumenter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	ion "github.com/JupiterMetaLabs/ioninstr"
	"github.com/JupiterMetaLabs/ioninstr/attr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Instrumenter turns a start/end pair of calls into one span plus the
// configured operation listener records.
//
// An Instrumenter is immutable and safe for concurrent use. Every call to
// Start must be matched by exactly one End with the context Start returned,
// on every exit path:
//
//	if !inst.ShouldStart(ctx, req) {
//	    return call(ctx, req)
//	}
//	ctx = inst.Start(ctx, req)
//	res, err := call(ctx, req)
//	inst.End(ctx, req, res, err)
type Instrumenter[REQ, RES any] struct {
	name        string
	category    string
	enabled     bool
	tracer      trace.Tracer
	propagators propagation.TextMapPropagator
	logger      ion.Logger

	spanName    SpanNameExtractor[REQ]
	spanKind    SpanKindExtractor[REQ]
	spanStatus  SpanStatusExtractor[REQ, RES]
	nameUpdater SpanNameUpdater[REQ]
	errorCause  ErrorCauseExtractor

	extractors  []AttributesExtractor[REQ, RES]
	customizers []ContextCustomizer[REQ]
	links       []SpanLinksExtractor[REQ]
	listeners   []OperationListener

	setter CarrierFunc[REQ]
	getter CarrierFunc[REQ]
}

// invocation is the per-operation state threaded from Start to End.
type invocation struct {
	attrs *attr.Builder
	span  trace.Span
	start time.Time
	ended atomic.Bool
}

type invocationKey struct{}

// Name returns the instrumentation name.
func (i *Instrumenter[REQ, RES]) Name() string {
	return i.name
}

// ShouldStart reports whether an operation for req should be traced under
// parent. It returns false when the instrumenter is disabled or when parent
// already carries a span of the same kind and suppression category, which
// happens when the same library is instrumented at two layers.
func (i *Instrumenter[REQ, RES]) ShouldStart(parent context.Context, req REQ) bool {
	if !i.enabled {
		return false
	}
	kind := trace.SpanKindInternal
	i.safely(parent, "span kind extractor", func() { kind = i.spanKind(req) })
	return !suppressed(parent, kind, i.category)
}

// Start starts an operation at the current time.
func (i *Instrumenter[REQ, RES]) Start(parent context.Context, req REQ) context.Context {
	return i.StartAt(parent, req, time.Now())
}

// StartAt starts an operation at the given time and returns the context of
// the new span. The caller must pass that context to End.
func (i *Instrumenter[REQ, RES]) StartAt(parent context.Context, req REQ, start time.Time) context.Context {
	kind := trace.SpanKindInternal
	i.safely(parent, "span kind extractor", func() { kind = i.spanKind(req) })

	if i.getter != nil && (kind == trace.SpanKindServer || kind == trace.SpanKindConsumer) {
		i.safely(parent, "propagation extract", func() {
			parent = i.propagators.Extract(parent, i.getter(req))
		})
	}

	b := attr.NewBuilder()
	for _, e := range i.extractors {
		i.safely(parent, "attributes extractor OnStart", func() { e.OnStart(b, parent, req) })
	}

	name := ""
	i.safely(parent, "span name extractor", func() { name = i.spanName(req) })
	if name == "" {
		name = i.name
	}

	var links []trace.Link
	for _, e := range i.links {
		i.safely(parent, "span links extractor", func() {
			for _, l := range e(parent, req) {
				if l.SpanContext.IsValid() {
					links = append(links, l)
				}
			}
		})
	}

	ctx, span := i.tracer.Start(parent, name,
		trace.WithSpanKind(kind),
		trace.WithTimestamp(start),
		trace.WithAttributes(b.Attributes()...),
		trace.WithLinks(links...),
	)

	inv := &invocation{attrs: b, span: span, start: start}
	ctx = context.WithValue(ctx, invocationKey{}, inv)
	ctx = withSuppression(ctx, kind, i.category)

	startAttrs := b.Set()
	for _, c := range i.customizers {
		i.safely(ctx, "context customizer", func() {
			if next := c(ctx, req, startAttrs); next != nil {
				ctx = next
			}
		})
	}
	for _, l := range i.listeners {
		i.safely(ctx, "operation listener OnStart", func() {
			if next := l.OnStart(ctx, startAttrs, start); next != nil {
				ctx = next
			}
		})
	}

	if i.setter != nil && (kind == trace.SpanKindClient || kind == trace.SpanKindProducer) {
		i.safely(ctx, "propagation inject", func() {
			i.propagators.Inject(ctx, i.setter(req))
		})
	}
	return ctx
}

// End ends the operation started by Start at the current time.
func (i *Instrumenter[REQ, RES]) End(ctx context.Context, req REQ, res RES, err error) {
	i.EndAt(ctx, req, res, err, time.Now())
}

// EndAt ends the operation started by Start at the given time. Calling it
// again for the same operation, or with a context that Start did not return,
// is a no-op.
func (i *Instrumenter[REQ, RES]) EndAt(ctx context.Context, req REQ, res RES, err error, end time.Time) {
	inv, ok := ctx.Value(invocationKey{}).(*invocation)
	if !ok || !inv.ended.CompareAndSwap(false, true) {
		return
	}
	span := inv.span

	if err != nil && i.errorCause != nil {
		i.safely(ctx, "error cause extractor", func() { err = i.errorCause(err) })
	}

	b := inv.attrs
	for _, e := range i.extractors {
		i.safely(ctx, "attributes extractor OnEnd", func() { e.OnEnd(b, ctx, req, res, err) })
	}
	span.SetAttributes(b.Attributes()...)

	if err != nil {
		span.RecordError(err, trace.WithTimestamp(end))
	}

	code, desc := codes.Unset, ""
	i.safely(ctx, "span status extractor", func() { code, desc = i.spanStatus(req, res, err) })
	if code != codes.Unset {
		span.SetStatus(code, desc)
	}

	if i.nameUpdater != nil {
		i.safely(ctx, "span name updater", func() {
			if name := i.nameUpdater(ctx, req); name != "" {
				span.SetName(name)
			}
		})
	}

	span.End(trace.WithTimestamp(end))

	endAttrs := b.Set()
	for j := len(i.listeners) - 1; j >= 0; j-- {
		l := i.listeners[j]
		i.safely(ctx, "operation listener OnEnd", func() { l.OnEnd(ctx, endAttrs, end) })
	}
}

// safely runs fn and converts a panic into a warning. Telemetry failures must
// never reach the instrumented application.
func (i *Instrumenter[REQ, RES]) safely(ctx context.Context, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			i.log().Warn(ctx, "instrumentation failure recovered",
				ion.String("instrumentation", i.name),
				ion.String("stage", stage),
				ion.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}

func (i *Instrumenter[REQ, RES]) log() ion.Logger {
	if i.logger != nil {
		return i.logger
	}
	return ion.Named("ion.instrumenter")
}

// StartAttributes returns the attributes captured so far for the operation in
// ctx, or an empty set when ctx was not returned by Start.
func StartAttributes(ctx context.Context) attribute.Set {
	inv, ok := ctx.Value(invocationKey{}).(*invocation)
	if !ok {
		return attribute.NewSet()
	}
	return inv.attrs.Set()
}

func defaultPropagators() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}
