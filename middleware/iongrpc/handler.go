package iongrpc

import (
	"context"

	"github.com/JupiterMetaLabs/ioninstr/carrier"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"github.com/JupiterMetaLabs/ioninstr/semconv/rpcconv"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"
)

type handler struct {
	server        bool
	inst          *instrumenter.Instrumenter[*call, *status.Status]
	filter        Filter
	messageEvents bool
}

var _ stats.Handler = (*handler)(nil)

// ServerHandler returns a stats.Handler for gRPC server instrumentation.
// Use with grpc.StatsHandler() option when creating a gRPC server.
//
// Example:
//
//	server := grpc.NewServer(
//	    grpc.StatsHandler(iongrpc.ServerHandler()),
//	)
func ServerHandler(opts ...Option) stats.Handler {
	return newHandler(true, opts)
}

// ClientHandler returns a stats.Handler for gRPC client instrumentation.
// Use with grpc.WithStatsHandler() option when dialing.
//
// Example:
//
//	conn, err := grpc.NewClient(addr,
//	    grpc.WithStatsHandler(iongrpc.ClientHandler()),
//	)
func ClientHandler(opts ...Option) stats.Handler {
	return newHandler(false, opts)
}

func newHandler(server bool, opts []Option) *handler {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}

	getter := rpcGetter{}
	b := instrumenter.NewBuilder[*call, *status.Status](ScopeName, rpcconv.SpanName[*call](getter)).
		SetSuppressionCategory("grpc").
		SetTracerProvider(o.tracerProvider).
		SetMeterProvider(o.meterProvider).
		SetPropagators(o.propagators).
		SetLogger(o.logger).
		AddAttributesExtractor(
			rpcconv.NewExtractor[*call, *status.Status](getter),
			grpcExtractor{server: server},
		).
		SetSpanStatusExtractor(statusExtractor(server))

	metadataCarrier := func(c *call) propagation.TextMapCarrier { return carrier.Metadata{MD: &c.md} }
	h := &handler{server: server, filter: o.filter, messageEvents: o.messageEvents}
	if server {
		h.inst = b.AddOperationMetrics(rpcconv.ServerMetrics).BuildServer(metadataCarrier)
	} else {
		h.inst = b.AddOperationMetrics(rpcconv.ClientMetrics).BuildClient(metadataCarrier)
	}
	return h
}

// TagRPC starts the span of an RPC. Client handlers inject the trace context
// into the outgoing metadata; server handlers extract it from the incoming
// metadata.
func (h *handler) TagRPC(ctx context.Context, info *stats.RPCTagInfo) context.Context {
	if h.filter != nil && !h.filter(info) {
		return ctx
	}

	var md metadata.MD
	if h.server {
		md, _ = metadata.FromIncomingContext(ctx)
	} else if outgoing, ok := metadata.FromOutgoingContext(ctx); ok {
		md = outgoing.Copy()
	}
	c := newCall(info.FullMethodName, md)
	if !h.inst.ShouldStart(ctx, c) {
		return ctx
	}

	ctx = h.inst.Start(ctx, c)
	if !h.server {
		ctx = metadata.NewOutgoingContext(ctx, c.md)
	}
	return context.WithValue(ctx, callKey{}, c)
}

// HandleRPC records message events and ends the span when the RPC ends.
func (h *handler) HandleRPC(ctx context.Context, rs stats.RPCStats) {
	c, ok := ctx.Value(callKey{}).(*call)
	if !ok {
		return
	}
	switch rs := rs.(type) {
	case *stats.InHeader:
		if h.server {
			c.setPeer(rs.RemoteAddr)
		}
	case *stats.OutHeader:
		if !h.server {
			c.setPeer(rs.RemoteAddr)
		}
	case *stats.InPayload:
		if h.messageEvents {
			c.messageEvent(ctx, semconv.MessageTypeReceived, rs.Length)
		}
	case *stats.OutPayload:
		if h.messageEvents {
			c.messageEvent(ctx, semconv.MessageTypeSent, rs.Length)
		}
	case *stats.End:
		h.inst.EndAt(ctx, c, status.Convert(rs.Error), rs.Error, rs.EndTime)
	}
}

// TagConn implements stats.Handler.
func (h *handler) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return ctx
}

// HandleConn implements stats.Handler.
func (h *handler) HandleConn(context.Context, stats.ConnStats) {}

// isError reports whether code marks a failed span. Clients treat every
// non-OK code as an error; servers only the codes that indicate a server
// fault.
func isError(code codes.Code, server bool) bool {
	if !server {
		return code != codes.OK
	}
	switch code {
	case codes.Unknown, codes.DeadlineExceeded, codes.Unimplemented,
		codes.Internal, codes.Unavailable, codes.DataLoss:
		return true
	}
	return false
}

func statusExtractor(server bool) instrumenter.SpanStatusExtractor[*call, *status.Status] {
	return func(_ *call, st *status.Status, _ error) (otelcodes.Code, string) {
		if isError(st.Code(), server) {
			return otelcodes.Error, st.Message()
		}
		return otelcodes.Unset, ""
	}
}
