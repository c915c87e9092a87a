package ionaws

import (
	"context"
	"fmt"

	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv/messagingconv"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Keys of the values the middleware leaves on ReceiveMessageOutput.ResultMetadata.
type (
	queueURLKey    struct{}
	receiveSpanKey struct{}
)

// Consumer creates the process spans of received SQS messages. It is safe
// for concurrent use; the iterators it returns are not.
type Consumer struct {
	inst       *instrumenter.Instrumenter[*processRequest, struct{}]
	propagator propagation.TextMapPropagator
}

// NewConsumer returns a Consumer. Build it once and reuse it for every
// ReceiveMessage output.
func NewConsumer(opts ...Option) *Consumer {
	o := newOptions(opts)
	getter := processGetter{}
	inst := instrumenter.NewBuilder[*processRequest, struct{}](ScopeName, messagingconv.SpanName[*processRequest, struct{}](getter, messagingconv.OperationProcess)).
		SetSuppressionCategory("aws-sqs").
		SetTracerProvider(o.tracerProvider).
		SetMeterProvider(o.meterProvider).
		SetLogger(o.logger).
		AddAttributesExtractor(messagingconv.NewExtractor[*processRequest, struct{}](getter, messagingconv.OperationProcess, o.messageHeaders...)).
		AddSpanLinksExtractor(func(_ context.Context, r *processRequest) []trace.Link {
			if !r.linked {
				return nil
			}
			return []trace.Link{{SpanContext: r.receive}}
		}).
		AddOperationMetrics(messagingconv.OperationMetrics).
		Build(instrumenter.AlwaysKind[*processRequest](trace.SpanKindConsumer))
	return &Consumer{inst: inst, propagator: o.propagator}
}

// Messages returns an iterator over out.Messages. Process spans are children
// of ctx unless a message carries its producer's context.
func (c *Consumer) Messages(ctx context.Context, out *sqs.ReceiveMessageOutput) *MessageIterator {
	it := &MessageIterator{consumer: c, ctx: ctx, current: ctx}
	if out == nil {
		return it
	}
	it.messages = out.Messages
	it.queueURL, _ = out.ResultMetadata.Get(queueURLKey{}).(string)
	it.receive, _ = out.ResultMetadata.Get(receiveSpanKey{}).(trace.SpanContext)
	return it
}

// TracingMessages is NewConsumer(opts...).Messages(ctx, out).
func TracingMessages(ctx context.Context, out *sqs.ReceiveMessageOutput, opts ...Option) *MessageIterator {
	return NewConsumer(opts...).Messages(ctx, out)
}

// MessageIterator walks the messages of one ReceiveMessage output, keeping
// one CONSUMER span open for the message being processed. The span of a
// message ends when the iterator advances, when Done is called or on Close.
//
// A MessageIterator must be used from a single goroutine.
type MessageIterator struct {
	consumer *Consumer
	ctx      context.Context
	queueURL string
	receive  trace.SpanContext
	messages []types.Message
	next     int

	// State of the current message; span is true while its span is open.
	msg     *types.Message
	current context.Context
	req     *processRequest
	span    bool
	err     error
}

// Next ends the span of the previous message and advances to the next one.
// It returns false when no messages are left.
//
// When the message carries a malformed AWSTraceHeader no span is opened and
// Err reports the failure; the iteration itself continues.
func (it *MessageIterator) Next() bool {
	it.Done(nil)
	it.msg, it.req, it.err, it.current = nil, nil, nil, it.ctx
	if it.next >= len(it.messages) {
		return false
	}
	it.msg = &it.messages[it.next]
	it.next++

	sc, err := messageParent(it.consumer.propagator, it.msg)
	if err != nil {
		it.err = fmt.Errorf("message %s: %w", aws.ToString(it.msg.MessageId), err)
		return true
	}

	parent := it.ctx
	req := &processRequest{queueURL: it.queueURL, message: it.msg, receive: it.receive}
	switch {
	case sc.IsValid():
		parent = trace.ContextWithRemoteSpanContext(parent, sc)
		req.linked = it.receive.IsValid()
	case it.receive.IsValid():
		parent = trace.ContextWithSpanContext(parent, it.receive)
	}

	inst := it.consumer.inst
	if !inst.ShouldStart(parent, req) {
		it.current = parent
		return true
	}
	it.current = inst.Start(parent, req)
	it.req, it.span = req, true
	return true
}

// Message returns the current message.
func (it *MessageIterator) Message() types.Message {
	if it.msg == nil {
		return types.Message{}
	}
	return *it.msg
}

// Context returns the context to process the current message with. It
// carries the message's process span, if one was opened.
func (it *MessageIterator) Context() context.Context {
	return it.current
}

// Err returns the correlation error of the current message.
func (it *MessageIterator) Err() error {
	return it.err
}

// Done ends the span of the current message, recording err as the
// processing outcome. Later calls for the same message are no-ops.
func (it *MessageIterator) Done(err error) {
	if !it.span {
		return
	}
	it.span = false
	it.consumer.inst.End(it.current, it.req, struct{}{}, err)
}

// Close ends the span of the current message. Messages not yet reached are
// left untraced.
func (it *MessageIterator) Close() {
	it.Done(nil)
	it.next = len(it.messages)
}
