package ionhttp

import (
	"context"
	"net/http"

	"github.com/JupiterMetaLabs/ioninstr/carrier"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv/httpconv"
	"go.opentelemetry.io/otel/propagation"
)

type transport struct {
	base   http.RoundTripper
	inst   *instrumenter.Instrumenter[*http.Request, *http.Response]
	filter func(*http.Request) bool
}

// Client returns an HTTP client instrumented with OpenTelemetry.
// Each request creates a CLIENT span linked to the current trace context;
// redirects it follows carry http.request.resend_count.
func Client(opts ...Option) *http.Client {
	return &http.Client{Transport: Transport(http.DefaultTransport, opts...)}
}

// Transport returns an http.RoundTripper instrumented with OpenTelemetry.
// Use this to instrument custom transports.
//
// Every round trip is one CLIENT span. Redirects followed by http.Client are
// numbered from the redirect chain and carry http.request.resend_count.
// Retries are separate calls to the transport; to number them as well, start
// the call with a context from ResendContext.
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	o := newOptions(opts)
	getter := clientGetter{}

	inst := instrumenter.NewBuilder[*http.Request, *http.Response](ScopeName, httpconv.ClientSpanName[*http.Request, *http.Response](getter)).
		SetSuppressionCategory("http").
		SetTracerProvider(o.tracerProvider).
		SetMeterProvider(o.meterProvider).
		SetPropagators(o.propagators).
		SetLogger(o.logger).
		AddAttributesExtractor(httpconv.NewClientExtractor[*http.Request, *http.Response](getter, o.extractorOptions()...)).
		SetSpanStatusExtractor(httpconv.ClientStatus[*http.Request, *http.Response](getter)).
		AddOperationMetrics(httpconv.ClientMetrics).
		BuildClient(func(r *http.Request) propagation.TextMapCarrier { return carrier.HTTP(r.Header) })

	return &transport{base: base, inst: inst, filter: o.filter}
}

// RoundTrip implements http.RoundTripper. The span ends when the response
// headers arrive.
func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if !httpconv.HasResendCount(ctx) {
		ctx = httpconv.InitResendCountAt(ctx, redirectDepth(r))
	}
	if (t.filter != nil && !t.filter(r)) || !t.inst.ShouldStart(ctx, r) {
		return t.base.RoundTrip(r)
	}

	// RoundTrippers must not modify the caller's request.
	r = r.Clone(ctx)
	ctx = t.inst.Start(ctx, r)
	r = r.WithContext(ctx)

	res, err := t.base.RoundTrip(r)
	t.inst.End(ctx, r, res, err)
	return res, err
}

// redirectDepth counts the redirects http.Client followed to build r.
func redirectDepth(r *http.Request) int64 {
	var n int64
	for res := r.Response; res != nil && res.Request != nil; res = res.Request.Response {
		n++
	}
	return n
}

// ResendContext returns a context numbering the attempts of one logical
// call: the first request sent with it has no resend count, the next ones
// have 1, 2 and so on.
func ResendContext(ctx context.Context) context.Context {
	return httpconv.InitResendCount(ctx)
}
