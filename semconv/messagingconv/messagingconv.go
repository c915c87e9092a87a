// Package messagingconv maps message producers and consumers to the messaging
// semantic conventions.
package messagingconv

import (
	"context"
	"strings"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Operation is the kind of messaging operation being traced.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationSend    Operation = "send"
	OperationReceive Operation = "receive"
	OperationProcess Operation = "process"
	OperationSettle  Operation = "settle"
)

// SpanKind returns the span kind of op: PRODUCER for create and send,
// CONSUMER for receive and process, CLIENT for settle.
func (op Operation) SpanKind() trace.SpanKind {
	switch op {
	case OperationCreate, OperationSend:
		return trace.SpanKindProducer
	case OperationReceive, OperationProcess:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindClient
	}
}

// AttributesGetter exposes a message or a batch of messages.
type AttributesGetter[REQ, RES any] interface {
	System(req REQ) string
	DestinationName(req REQ) string
	DestinationTemporary(req REQ) bool
	// MessageID returns the id assigned by the broker, if known.
	MessageID(req REQ, res RES) string
	// MessageBodySize returns the body size in bytes, or -1 when unknown.
	MessageBodySize(req REQ) int64
	// BatchMessageCount returns the number of messages in a batch
	// operation, or 0 for single-message operations.
	BatchMessageCount(req REQ, res RES) int
	MessageHeader(req REQ, name string) []string
}

// Extractor writes messaging.* attributes for one operation.
type Extractor[REQ, RES any] struct {
	getter    AttributesGetter[REQ, RES]
	operation Operation
	headers   []string
}

// NewExtractor returns an extractor for operations of type op. Captured
// headers are recorded as messaging.header.<name> string arrays.
func NewExtractor[REQ, RES any](getter AttributesGetter[REQ, RES], op Operation, capturedHeaders ...string) *Extractor[REQ, RES] {
	headers := make([]string, 0, len(capturedHeaders))
	for _, h := range capturedHeaders {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, h)
		}
	}
	return &Extractor[REQ, RES]{getter: getter, operation: op, headers: headers}
}

// OnStart implements instrumenter.AttributesExtractor.
func (e *Extractor[REQ, RES]) OnStart(b *attr.Builder, _ context.Context, req REQ) {
	b.PutString(semconv.MessagingSystem, e.getter.System(req))
	b.PutString(semconv.MessagingOperationType, string(e.operation))
	b.PutString(semconv.MessagingOperationName, string(e.operation))
	if e.getter.DestinationTemporary(req) {
		b.PutBool(semconv.MessagingDestinationTemp, true)
		b.PutString(semconv.MessagingDestinationName, "(temporary)")
	} else {
		b.PutString(semconv.MessagingDestinationName, e.getter.DestinationName(req))
	}
	if size := e.getter.MessageBodySize(req); size >= 0 {
		b.PutInt64(semconv.MessagingMessageBodySize, size)
	}
	for _, name := range e.headers {
		key := attribute.Key(semconv.MessagingHeaderPrefix + strings.ReplaceAll(strings.ToLower(name), "-", "_"))
		b.PutStringSlice(key, e.getter.MessageHeader(req, name))
	}
}

// OnEnd implements instrumenter.AttributesExtractor.
func (e *Extractor[REQ, RES]) OnEnd(b *attr.Builder, _ context.Context, req REQ, res RES, _ error) {
	b.PutString(semconv.MessagingMessageID, e.getter.MessageID(req, res))
	if n := e.getter.BatchMessageCount(req, res); n > 0 {
		b.PutInt(semconv.MessagingBatchMessageCount, n)
	}
}

// SpanName names messaging spans "<operation> <destination>", or just the
// operation when the destination is unknown or temporary.
func SpanName[REQ, RES any](getter AttributesGetter[REQ, RES], op Operation) instrumenter.SpanNameExtractor[REQ] {
	return func(req REQ) string {
		if getter.DestinationTemporary(req) {
			return string(op) + " (temporary)"
		}
		if dest := getter.DestinationName(req); dest != "" {
			return string(op) + " " + dest
		}
		return string(op)
	}
}

// OperationDurationName is the histogram recorded by OperationMetrics.
const OperationDurationName = "messaging.client.operation.duration"

var durationKeys = []attribute.Key{
	semconv.MessagingSystem,
	semconv.MessagingOperationName,
	semconv.MessagingOperationType,
	semconv.MessagingDestinationName,
	semconv.ServerAddress,
	semconv.ErrorType,
}

// OperationMetrics records the duration of messaging operations.
func OperationMetrics(meter metric.Meter) instrumenter.OperationListener {
	h, err := meter.Float64Histogram(OperationDurationName,
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of messaging operations."),
	)
	if err != nil {
		return nil
	}
	return instrumenter.NewDurationListener(h, durationKeys...)
}
