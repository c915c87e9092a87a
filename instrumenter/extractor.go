package instrumenter

import (
	"context"
	"fmt"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// AttributesExtractor writes attributes for one operation.
//
// OnStart runs before the span exists, so its attributes are visible to the
// sampler. OnEnd runs on the same Builder, after the operation completed; res
// is the zero value when the operation failed and err is nil on success.
// Missing optional data is simply not written.
type AttributesExtractor[REQ, RES any] interface {
	OnStart(b *attr.Builder, parent context.Context, req REQ)
	OnEnd(b *attr.Builder, ctx context.Context, req REQ, res RES, err error)
}

// AttributesExtractorFuncs adapts a pair of functions to AttributesExtractor.
// Either function may be nil.
type AttributesExtractorFuncs[REQ, RES any] struct {
	Start func(b *attr.Builder, parent context.Context, req REQ)
	End   func(b *attr.Builder, ctx context.Context, req REQ, res RES, err error)
}

// OnStart implements AttributesExtractor.
func (f AttributesExtractorFuncs[REQ, RES]) OnStart(b *attr.Builder, parent context.Context, req REQ) {
	if f.Start != nil {
		f.Start(b, parent, req)
	}
}

// OnEnd implements AttributesExtractor.
func (f AttributesExtractorFuncs[REQ, RES]) OnEnd(b *attr.Builder, ctx context.Context, req REQ, res RES, err error) {
	if f.End != nil {
		f.End(b, ctx, req, res, err)
	}
}

// ConstantAttributes returns an extractor that writes kvs on start.
func ConstantAttributes[REQ, RES any](kvs ...attribute.KeyValue) AttributesExtractor[REQ, RES] {
	return AttributesExtractorFuncs[REQ, RES]{
		Start: func(b *attr.Builder, _ context.Context, _ REQ) {
			b.PutAll(kvs...)
		},
	}
}

// SpanNameExtractor derives the span name from the request.
type SpanNameExtractor[REQ any] func(req REQ) string

// SpanNameUpdater may rename the span once the operation has ended, using
// state that only becomes known during the call (an HTTP route, for example).
// An empty result keeps the current name.
type SpanNameUpdater[REQ any] func(ctx context.Context, req REQ) string

// SpanKindExtractor derives the span kind from the request.
type SpanKindExtractor[REQ any] func(req REQ) trace.SpanKind

// AlwaysKind returns a SpanKindExtractor with a fixed result.
func AlwaysKind[REQ any](kind trace.SpanKind) SpanKindExtractor[REQ] {
	return func(REQ) trace.SpanKind { return kind }
}

// SpanStatusExtractor maps the outcome of an operation to a span status.
// codes.Unset leaves the span status untouched.
type SpanStatusExtractor[REQ, RES any] func(req REQ, res RES, err error) (codes.Code, string)

// DefaultSpanStatus marks the span as failed iff err is non-nil.
func DefaultSpanStatus[REQ, RES any](_ REQ, _ RES, err error) (codes.Code, string) {
	if err != nil {
		return codes.Error, ErrorDescription(err)
	}
	return codes.Unset, ""
}

// ErrorDescription renders err as "<type>: <message>", the description
// recorded on failed spans.
func ErrorDescription(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T: %s", err, err.Error())
}

// ContextCustomizer decorates the context of a freshly started operation.
// It must return a derived context and never mutate ctx.
type ContextCustomizer[REQ any] func(ctx context.Context, req REQ, startAttrs attribute.Set) context.Context

// SpanLinksExtractor returns the links of a span about to start. Links to
// invalid span contexts are dropped.
type SpanLinksExtractor[REQ any] func(parent context.Context, req REQ) []trace.Link

// ErrorCauseExtractor strips wrapper errors that carry no information about
// the failure before the error is recorded.
type ErrorCauseExtractor func(err error) error

// CarrierFunc exposes the propagation carrier of a request.
type CarrierFunc[REQ any] func(req REQ) propagation.TextMapCarrier
