// Package rpcconv maps remote procedure calls to the RPC semantic
// conventions. It is protocol-neutral: gRPC and AWS SDK calls both go through
// it, with protocol specifics (status codes, request ids) added by their
// adapters.
package rpcconv

import (
	"context"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttributesGetter exposes the identity of a remote call.
type AttributesGetter[REQ any] interface {
	// System returns the RPC system, such as "grpc" or "aws-api".
	System(req REQ) string
	// Service returns the full name of the called service.
	Service(req REQ) string
	// Method returns the name of the called method.
	Method(req REQ) string
}

// ServerAddressGetter is implemented by getters that know the peer of a
// client call.
type ServerAddressGetter[REQ any] interface {
	ServerAddress(req REQ) string
	ServerPort(req REQ) int
}

// Extractor writes rpc.system, rpc.service and rpc.method, plus
// server.address and server.port when the getter provides them.
type Extractor[REQ, RES any] struct {
	getter AttributesGetter[REQ]
}

// NewExtractor returns an RPC attributes extractor.
func NewExtractor[REQ, RES any](getter AttributesGetter[REQ]) *Extractor[REQ, RES] {
	return &Extractor[REQ, RES]{getter: getter}
}

// OnStart implements instrumenter.AttributesExtractor.
func (e *Extractor[REQ, RES]) OnStart(b *attr.Builder, _ context.Context, req REQ) {
	b.PutString(semconv.RPCSystem, e.getter.System(req))
	b.PutString(semconv.RPCService, e.getter.Service(req))
	b.PutString(semconv.RPCMethod, e.getter.Method(req))
	if sg, ok := e.getter.(ServerAddressGetter[REQ]); ok {
		b.PutString(semconv.ServerAddress, sg.ServerAddress(req))
		if port := sg.ServerPort(req); port > 0 {
			b.PutInt(semconv.ServerPort, port)
		}
	}
}

// OnEnd implements instrumenter.AttributesExtractor.
func (e *Extractor[REQ, RES]) OnEnd(*attr.Builder, context.Context, REQ, RES, error) {}

// SpanName names RPC spans "<service>/<method>". It falls back to the method
// alone, then to "RPC request".
func SpanName[REQ any](getter AttributesGetter[REQ]) instrumenter.SpanNameExtractor[REQ] {
	return func(req REQ) string {
		service, method := getter.Service(req), getter.Method(req)
		switch {
		case service != "" && method != "":
			return service + "/" + method
		case method != "":
			return method
		default:
			return "RPC request"
		}
	}
}

// Metric names.
const (
	ClientDurationName = "rpc.client.duration"
	ServerDurationName = "rpc.server.duration"
)

var durationKeys = []attribute.Key{
	semconv.RPCSystem,
	semconv.RPCService,
	semconv.RPCMethod,
	semconv.RPCGRPCStatusCode,
	semconv.ServerAddress,
	semconv.ServerPort,
	semconv.ErrorType,
}

// ClientMetrics records the duration of outgoing calls.
func ClientMetrics(meter metric.Meter) instrumenter.OperationListener {
	return durationMetrics(meter, ClientDurationName, "Duration of outbound RPCs.")
}

// ServerMetrics records the duration of served calls.
func ServerMetrics(meter metric.Meter) instrumenter.OperationListener {
	return durationMetrics(meter, ServerDurationName, "Duration of inbound RPCs.")
}

func durationMetrics(meter metric.Meter, name, desc string) instrumenter.OperationListener {
	h, err := meter.Float64Histogram(name, metric.WithUnit("ms"), metric.WithDescription(desc))
	if err != nil {
		return nil
	}
	return instrumenter.NewDurationListener(h, durationKeys...)
}
