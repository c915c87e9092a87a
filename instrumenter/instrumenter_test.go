package instrumenter

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/carrier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type request struct {
	name    string
	headers http.Header
}

type response struct {
	status int
}

func newTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func spanName(r request) string { return r.name }

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func setValue(set attribute.Set, key attribute.Key) string {
	v, _ := set.Value(key)
	return v.AsString()
}

func TestInstrumenter_ExtractorsRunInOrderAndOverwrite(t *testing.T) {
	sr, tp := newTracer()

	first := AttributesExtractorFuncs[request, response]{
		Start: func(b *attr.Builder, _ context.Context, r request) {
			b.PutString("op.name", r.name)
			b.PutString("shared", "first")
		},
		End: func(b *attr.Builder, _ context.Context, _ request, res response, _ error) {
			b.PutInt("op.status", res.status)
		},
	}
	second := AttributesExtractorFuncs[request, response]{
		Start: func(b *attr.Builder, _ context.Context, _ request) {
			b.PutString("shared", "second")
		},
		End: func(b *attr.Builder, _ context.Context, _ request, _ response, _ error) {
			b.PutString("shared", "second-end")
		},
	}

	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddAttributesExtractor(first, second).
		Build(AlwaysKind[request](trace.SpanKindInternal))

	req := request{name: "op"}
	ctx := inst.Start(context.Background(), req)
	assert.Equal(t, "second", setValue(StartAttributes(ctx), "shared"))
	inst.End(ctx, req, response{status: 7}, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name())
	got := attrMap(spans[0].Attributes())
	assert.Equal(t, "op", got["op.name"].AsString())
	assert.Equal(t, "second-end", got["shared"].AsString())
	assert.Equal(t, int64(7), got["op.status"].AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestInstrumenter_StartAttributesVisibleToSampler(t *testing.T) {
	var seen []attribute.KeyValue
	sampler := samplerFunc(func(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
		seen = p.Attributes
		return sdktrace.SamplingResult{Decision: sdktrace.RecordAndSample}
	})
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler))

	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddAttributesExtractor(ConstantAttributes[request, response](attribute.String("k", "v"))).
		Build(nil)
	ctx := inst.Start(context.Background(), request{name: "op"})
	inst.End(ctx, request{}, response{}, nil)

	assert.Equal(t, []attribute.KeyValue{attribute.String("k", "v")}, seen)
}

type samplerFunc func(sdktrace.SamplingParameters) sdktrace.SamplingResult

func (f samplerFunc) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult { return f(p) }
func (f samplerFunc) Description() string                                                { return "func" }

func TestInstrumenter_ErrorStatus(t *testing.T) {
	sr, tp := newTracer()
	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		Build(nil)

	err := errors.New("connection reset")
	ctx := inst.Start(context.Background(), request{name: "op"})
	inst.End(ctx, request{}, response{}, err)

	span := sr.Ended()[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "*errors.errorString: connection reset", span.Status().Description)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
}

type wrapped struct{ cause error }

func (w wrapped) Error() string { return "wrapped: " + w.cause.Error() }
func (w wrapped) Unwrap() error { return w.cause }

func TestInstrumenter_ErrorCauseExtractor(t *testing.T) {
	sr, tp := newTracer()
	var endErr error
	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		SetErrorCauseExtractor(errors.Unwrap).
		AddAttributesExtractor(AttributesExtractorFuncs[request, response]{
			End: func(_ *attr.Builder, _ context.Context, _ request, _ response, err error) { endErr = err },
		}).
		Build(nil)

	cause := errors.New("root cause")
	ctx := inst.Start(context.Background(), request{name: "op"})
	inst.End(ctx, request{}, response{}, wrapped{cause: cause})

	assert.Same(t, cause, endErr)
	assert.Equal(t, "*errors.errorString: root cause", sr.Ended()[0].Status().Description)
}

func TestInstrumenter_CustomStatusExtractor(t *testing.T) {
	sr, tp := newTracer()
	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		SetSpanStatusExtractor(func(_ request, res response, _ error) (codes.Code, string) {
			if res.status >= 500 {
				return codes.Error, ""
			}
			return codes.Unset, ""
		}).
		Build(nil)

	ctx := inst.Start(context.Background(), request{name: "op"})
	inst.End(ctx, request{}, response{status: 503}, nil)

	assert.Equal(t, codes.Error, sr.Ended()[0].Status().Code)
}

func TestInstrumenter_PanicsAreRecovered(t *testing.T) {
	sr, tp := newTracer()
	boom := AttributesExtractorFuncs[request, response]{
		Start: func(*attr.Builder, context.Context, request) { panic("start") },
		End:   func(*attr.Builder, context.Context, request, response, error) { panic("end") },
	}
	ok := ConstantAttributes[request, response](attribute.String("after", "panic"))

	inst := NewBuilder[request, response]("test", func(request) string { panic("name") }).
		SetTracerProvider(tp).
		AddAttributesExtractor(boom, ok).
		AddContextCustomizer(func(context.Context, request, attribute.Set) context.Context { panic("customizer") }).
		AddOperationListener(panicListener{}).
		Build(nil)

	assert.NotPanics(t, func() {
		ctx := inst.Start(context.Background(), request{name: "op"})
		inst.End(ctx, request{}, response{}, nil)
	})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "test", spans[0].Name(), "failed name extractor falls back to the instrumentation name")
	assert.Equal(t, "panic", attrMap(spans[0].Attributes())["after"].AsString())
}

type panicListener struct{}

func (panicListener) OnStart(context.Context, attribute.Set, time.Time) context.Context {
	panic("listener start")
}
func (panicListener) OnEnd(context.Context, attribute.Set, time.Time) { panic("listener end") }

func TestInstrumenter_EndTwiceIsNoop(t *testing.T) {
	sr, tp := newTracer()
	rec := &recordingListener{}
	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddOperationListener(rec).
		Build(nil)

	ctx := inst.Start(context.Background(), request{name: "op"})
	inst.End(ctx, request{}, response{}, nil)
	inst.End(ctx, request{}, response{}, errors.New("late"))
	inst.End(context.Background(), request{}, response{}, nil)

	assert.Len(t, sr.Ended(), 1)
	assert.Equal(t, 1, rec.ends)
	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

type recordingListener struct {
	starts, ends int
	order        *[]string
	name         string
	startAttrs   attribute.Set
	endAttrs     attribute.Set
	start, end   time.Time
}

type listenerKey struct{}

func (r *recordingListener) OnStart(ctx context.Context, attrs attribute.Set, start time.Time) context.Context {
	r.starts++
	r.startAttrs, r.start = attrs, start
	if r.order != nil {
		*r.order = append(*r.order, "start:"+r.name)
	}
	return context.WithValue(ctx, listenerKey{}, r.name)
}

func (r *recordingListener) OnEnd(ctx context.Context, attrs attribute.Set, end time.Time) {
	r.ends++
	r.endAttrs, r.end = attrs, end
	if r.order != nil {
		v, _ := ctx.Value(listenerKey{}).(string)
		*r.order = append(*r.order, "end:"+r.name+":"+v)
	}
}

func TestInstrumenter_ListenerOrderAndTimestamps(t *testing.T) {
	_, tp := newTracer()
	var order []string
	a := &recordingListener{name: "a", order: &order}
	b := &recordingListener{name: "b", order: &order}

	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddAttributesExtractor(AttributesExtractorFuncs[request, response]{
			Start: func(b *attr.Builder, _ context.Context, _ request) { b.PutString("s", "1") },
			End:   func(b *attr.Builder, _ context.Context, _ request, _ response, _ error) { b.PutString("e", "2") },
		}).
		AddOperationListener(a, b).
		Build(nil)

	start := time.Unix(100, 0)
	end := start.Add(50 * time.Millisecond)
	ctx := inst.StartAt(context.Background(), request{name: "op"}, start)
	inst.EndAt(ctx, request{}, response{}, nil, end)

	assert.Equal(t, []string{"start:a", "start:b", "end:b:b", "end:a:b"}, order)
	assert.Equal(t, start, a.start)
	assert.Equal(t, end, a.end)
	assert.Equal(t, 1, a.startAttrs.Len())
	assert.Equal(t, 2, a.endAttrs.Len())
}

func TestInstrumenter_ContextCustomizer(t *testing.T) {
	_, tp := newTracer()
	type key struct{}
	var seenAttrs attribute.Set
	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddAttributesExtractor(ConstantAttributes[request, response](attribute.String("k", "v"))).
		AddContextCustomizer(func(ctx context.Context, _ request, attrs attribute.Set) context.Context {
			seenAttrs = attrs
			return context.WithValue(ctx, key{}, "customized")
		}).
		Build(nil)

	parent := context.Background()
	ctx := inst.Start(parent, request{name: "op"})
	defer inst.End(ctx, request{}, response{}, nil)

	assert.Equal(t, "customized", ctx.Value(key{}))
	assert.Nil(t, parent.Value(key{}))
	assert.Equal(t, "v", setValue(seenAttrs, "k"))
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
}

func TestInstrumenter_Disabled(t *testing.T) {
	inst := NewBuilder[request, response]("test", spanName).SetEnabled(false).Build(nil)
	assert.False(t, inst.ShouldStart(context.Background(), request{}))
}

func TestInstrumenter_Suppression(t *testing.T) {
	sr, tp := newTracer()
	client := NewBuilder[request, response]("lib", spanName).SetTracerProvider(tp).
		Build(AlwaysKind[request](trace.SpanKindClient))
	otherCategory := NewBuilder[request, response]("other", spanName).SetTracerProvider(tp).
		Build(AlwaysKind[request](trace.SpanKindClient))
	internal := NewBuilder[request, response]("lib", spanName).SetTracerProvider(tp).Build(nil)

	ctx := client.Start(context.Background(), request{name: "outer"})
	assert.False(t, client.ShouldStart(ctx, request{}), "same kind and category nests")
	assert.True(t, otherCategory.ShouldStart(ctx, request{}))
	assert.True(t, internal.ShouldStart(ctx, request{}), "internal spans are never suppressed")
	client.End(ctx, request{}, response{}, nil)

	suppressedCtx := Suppress(context.Background(), trace.SpanKindClient, "lib")
	assert.False(t, client.ShouldStart(suppressedCtx, request{}))
	assert.Len(t, sr.Ended(), 1)
}

func TestInstrumenter_ClientInjectsServerExtracts(t *testing.T) {
	sr, tp := newTracer()
	prop := propagation.TraceContext{}
	headers := func(r request) propagation.TextMapCarrier { return carrier.HTTP(r.headers) }

	client := NewBuilder[request, response]("client", spanName).
		SetTracerProvider(tp).SetPropagators(prop).BuildClient(headers)
	server := NewBuilder[request, response]("server", spanName).
		SetTracerProvider(tp).SetPropagators(prop).BuildServer(headers)

	req := request{name: "call", headers: http.Header{}}
	cctx := client.Start(context.Background(), req)
	require.NotEmpty(t, req.headers.Get("traceparent"))

	sctx := server.Start(context.Background(), request{name: "handle", headers: req.headers})
	server.End(sctx, req, response{}, nil)
	client.End(cctx, req, response{}, nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	serverSpan, clientSpan := spans[0], spans[1]
	assert.Equal(t, trace.SpanKindServer, serverSpan.SpanKind())
	assert.Equal(t, trace.SpanKindClient, clientSpan.SpanKind())
	assert.Equal(t, clientSpan.SpanContext().TraceID(), serverSpan.SpanContext().TraceID())
	assert.Equal(t, clientSpan.SpanContext().SpanID(), serverSpan.Parent().SpanID())
	assert.True(t, serverSpan.Parent().IsRemote())
}

func TestInstrumenter_ProducerAndConsumerKinds(t *testing.T) {
	sr, tp := newTracer()
	noCarrier := func(request) propagation.TextMapCarrier { return propagation.MapCarrier{} }

	producer := NewBuilder[request, response]("mq", spanName).SetTracerProvider(tp).BuildProducer(noCarrier)
	consumer := NewBuilder[request, response]("mq", spanName).SetTracerProvider(tp).BuildConsumer(noCarrier)

	ctx := producer.Start(context.Background(), request{name: "send"})
	producer.End(ctx, request{}, response{}, nil)
	ctx = consumer.Start(context.Background(), request{name: "process"})
	consumer.End(ctx, request{}, response{}, nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, trace.SpanKindProducer, spans[0].SpanKind())
	assert.Equal(t, trace.SpanKindConsumer, spans[1].SpanKind())
}

func TestInstrumenter_SpanNameUpdater(t *testing.T) {
	sr, tp := newTracer()
	type routeKey struct{}
	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddContextCustomizer(func(ctx context.Context, _ request, _ attribute.Set) context.Context {
			route := ""
			return context.WithValue(ctx, routeKey{}, &route)
		}).
		SetSpanNameUpdater(func(ctx context.Context, r request) string {
			if route := *ctx.Value(routeKey{}).(*string); route != "" {
				return r.name + " " + route
			}
			return ""
		}).
		Build(nil)

	ctx := inst.Start(context.Background(), request{name: "GET"})
	*ctx.Value(routeKey{}).(*string) = "/users/{id}"
	inst.End(ctx, request{name: "GET"}, response{}, nil)

	assert.Equal(t, "GET /users/{id}", sr.Ended()[0].Name())
}

// durationListener is a minimal OperationMetrics implementation used to check
// that metric points recorded at End carry an exemplar of the operation span.
type durationListener struct {
	hist metric.Float64Histogram
}

type startKey struct{}

func durationMetrics(m metric.Meter) OperationListener {
	h, err := m.Float64Histogram("op.duration", metric.WithUnit("ms"))
	if err != nil {
		return nil
	}
	return &durationListener{hist: h}
}

func (d *durationListener) OnStart(ctx context.Context, _ attribute.Set, start time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, start)
}

func (d *durationListener) OnEnd(ctx context.Context, attrs attribute.Set, end time.Time) {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return
	}
	d.hist.Record(ctx, NanosToMillis(end.Sub(start)), metric.WithAttributeSet(attrs))
}

func TestInstrumenter_OperationMetricsCarryExemplars(t *testing.T) {
	_, tp := newTracer()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		SetMeterProvider(mp).
		AddAttributesExtractor(AttributesExtractorFuncs[request, response]{
			Start: func(b *attr.Builder, _ context.Context, r request) { b.PutString("op", r.name) },
		}).
		AddOperationMetrics(durationMetrics).
		Build(nil)

	start := time.Now()
	ctx := inst.StartAt(context.Background(), request{name: "op"}, start)
	traceID := trace.SpanContextFromContext(ctx).TraceID()
	inst.EndAt(ctx, request{}, response{}, nil, start.Add(150*time.Millisecond))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "test", rm.ScopeMetrics[0].Scope.Name)

	hist := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.InDelta(t, 150, dp.Sum, 0.001)
	op, _ := dp.Attributes.Value("op")
	assert.Equal(t, "op", op.AsString())
	require.NotEmpty(t, dp.Exemplars)
	assert.Equal(t, traceID[:], dp.Exemplars[0].TraceID)
}

func TestNanosToMillis(t *testing.T) {
	assert.Equal(t, 1.5, NanosToMillis(1500*time.Microsecond))
	assert.Equal(t, 0.0, NanosToMillis(0))
}

func TestErrorDescription(t *testing.T) {
	assert.Equal(t, "", ErrorDescription(nil))
	assert.Equal(t, "instrumenter.wrapped: wrapped: x", ErrorDescription(wrapped{cause: errors.New("x")}))
}

func TestDurationListener_FiltersAndIgnoresSecondEnd(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	h, err := mp.Meter("test").Float64Histogram("op.duration")
	require.NoError(t, err)
	l := NewDurationListener(h, "keep")

	start := time.Now()
	ctx := l.OnStart(context.Background(), attribute.NewSet(attribute.String("keep", "a"), attribute.String("drop", "x")), start)
	end := attribute.NewSet(attribute.String("keep", "b"))
	l.OnEnd(ctx, end, start.Add(20*time.Millisecond))
	l.OnEnd(ctx, end, start.Add(40*time.Millisecond))
	l.OnEnd(context.Background(), end, start.Add(40*time.Millisecond))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	hist := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	assert.InDelta(t, 20, dp.Sum, 0.001)
	assert.Equal(t, 1, dp.Attributes.Len())
	assert.Equal(t, "b", setValue(dp.Attributes, "keep"))
}

func TestInstrumenter_SpanLinks(t *testing.T) {
	sr, tp := newTracer()
	traceID, _ := trace.TraceIDFromHex("5759e988bd862e3fe1be46a994272793")
	spanID, _ := trace.SpanIDFromHex("53995c3f42cd8ad8")
	linked := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, Remote: true})

	inst := NewBuilder[request, response]("test", spanName).
		SetTracerProvider(tp).
		AddSpanLinksExtractor(func(context.Context, request) []trace.Link {
			return []trace.Link{{SpanContext: linked}, {SpanContext: trace.SpanContext{}}}
		}).
		Build(nil)

	ctx := inst.Start(context.Background(), request{name: "receive"})
	inst.End(ctx, request{}, response{}, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	links := spans[0].Links()
	require.Len(t, links, 1)
	assert.Equal(t, traceID, links[0].SpanContext.TraceID())
	assert.Equal(t, spanID, links[0].SpanContext.SpanID())
}
