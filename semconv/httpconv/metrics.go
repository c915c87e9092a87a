package httpconv

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	ClientDurationName       = "http.client.duration"
	ServerDurationName       = "http.server.duration"
	ServerActiveRequestsName = "http.server.active_requests"
)

var clientDurationKeys = []attribute.Key{
	semconv.HTTPRequestMethod,
	semconv.HTTPResponseStatusCode,
	semconv.ServerAddress,
	semconv.ServerPort,
	semconv.NetworkProtocolVersion,
	semconv.ErrorType,
}

var serverDurationKeys = []attribute.Key{
	semconv.HTTPRequestMethod,
	semconv.HTTPResponseStatusCode,
	semconv.HTTPRoute,
	semconv.URLScheme,
	semconv.NetworkProtocolVersion,
	semconv.ErrorType,
}

var activeRequestKeys = attr.Keys(
	semconv.HTTPRequestMethod,
	semconv.URLScheme,
	semconv.ServerAddress,
	semconv.ServerPort,
)

// ClientMetrics records the duration of outgoing HTTP calls.
func ClientMetrics(meter metric.Meter) instrumenter.OperationListener {
	h, err := meter.Float64Histogram(ClientDurationName,
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of HTTP client requests."),
	)
	if err != nil {
		return nil
	}
	return instrumenter.NewDurationListener(h, clientDurationKeys...)
}

// ServerMetrics records the duration of served HTTP requests and the number
// of requests in flight.
func ServerMetrics(meter metric.Meter) instrumenter.OperationListener {
	h, err := meter.Float64Histogram(ServerDurationName,
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of HTTP server requests."),
	)
	if err != nil {
		return nil
	}
	active, err := meter.Int64UpDownCounter(ServerActiveRequestsName,
		metric.WithUnit("{request}"),
		metric.WithDescription("Number of HTTP server requests in flight."),
	)
	if err != nil {
		return nil
	}
	return &serverMetrics{
		duration: instrumenter.NewDurationListener(h, serverDurationKeys...),
		active:   active,
	}
}

type serverMetrics struct {
	duration *instrumenter.DurationListener
	active   metric.Int64UpDownCounter
}

type activeState struct {
	attrs attribute.Set
	ended atomic.Bool
}

type activeKey struct{}

func (m *serverMetrics) OnStart(ctx context.Context, startAttrs attribute.Set, start time.Time) context.Context {
	set := attr.Filter(startAttrs, activeRequestKeys)
	m.active.Add(ctx, 1, metric.WithAttributeSet(set))
	ctx = context.WithValue(ctx, activeKey{}, &activeState{attrs: set})
	return m.duration.OnStart(ctx, startAttrs, start)
}

func (m *serverMetrics) OnEnd(ctx context.Context, endAttrs attribute.Set, end time.Time) {
	if st, ok := ctx.Value(activeKey{}).(*activeState); ok && st.ended.CompareAndSwap(false, true) {
		m.active.Add(ctx, -1, metric.WithAttributeSet(st.attrs))
	}
	m.duration.OnEnd(ctx, endAttrs, end)
}
