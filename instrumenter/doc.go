// Package instrumenter is the generic request/response instrumentation
// pipeline.
//
// An Instrumenter is assembled once per library with a Builder from a span
// name extractor, attribute extractors, a status extractor, context
// customizers and operation listeners, then shared by every call:
//
//	inst := instrumenter.NewBuilder[*http.Request, *http.Response]("net/http", httpconv.ClientSpanName(getter)).
//	    AddAttributesExtractor(httpconv.NewClientExtractor(getter)).
//	    SetSpanStatusExtractor(httpconv.ClientStatus(getter)).
//	    AddOperationMetrics(httpconv.ClientMetrics).
//	    BuildClient(func(r *http.Request) propagation.TextMapCarrier { return carrier.HTTP(r.Header) })
//
// Attributes are collected into one attr.Builder per operation: start
// extractors run before the span is created so the sampler sees them, end
// extractors run on the same builder, and a later write to a key replaces an
// earlier one.
//
// Nothing in the pipeline may fail the instrumented call. Panics raised by
// extractors, customizers or listeners are recovered and logged at warn level.
package instrumenter
