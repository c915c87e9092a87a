package ionaws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/carrier"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"github.com/JupiterMetaLabs/ioninstr/semconv/messagingconv"
	"github.com/JupiterMetaLabs/ioninstr/semconv/rpcconv"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Middleware ids registered on the SDK stack.
const (
	initializeID  = "IonInitialize"
	finalizeID    = "IonFinalize"
	deserializeID = "IonDeserialize"
)

// AppendMiddlewares adds the instrumentation to the APIOptions of an
// aws.Config or of a service client's Options. Calls are traced only once
// per stack when the instrumentation was appended more than once.
func AppendMiddlewares(apiOptions *[]func(*middleware.Stack) error, opts ...Option) {
	m := newMiddlewares(newOptions(opts))
	*apiOptions = append(*apiOptions, m.install)
}

type middlewares struct {
	inst       *instrumenter.Instrumenter[*request, *response]
	receive    *instrumenter.Instrumenter[*receiveRequest, struct{}]
	propagator propagation.TextMapPropagator
}

func newMiddlewares(o *options) *middlewares {
	inst := instrumenter.NewBuilder[*request, *response](ScopeName, func(r *request) string { return spanName(r.service, r.operation) }).
		SetSuppressionCategory("aws-sdk").
		SetTracerProvider(o.tracerProvider).
		SetMeterProvider(o.meterProvider).
		SetPropagators(o.propagator).
		SetLogger(o.logger).
		AddAttributesExtractor(
			rpcconv.NewExtractor[*request, *response](rpcGetter{}),
			awsExtractor{experimental: o.experimental},
			newSQSExtractor(o.messageHeaders),
		).
		AddOperationMetrics(rpcconv.ClientMetrics).
		Build(spanKind)

	m := &middlewares{inst: inst, propagator: o.propagator}
	if o.receiveSpans {
		getter := receiveGetter{}
		m.receive = instrumenter.NewBuilder[*receiveRequest, struct{}](ScopeName, messagingconv.SpanName[*receiveRequest, struct{}](getter, messagingconv.OperationReceive)).
			SetSuppressionCategory("aws-sqs").
			SetTracerProvider(o.tracerProvider).
			SetMeterProvider(o.meterProvider).
			SetLogger(o.logger).
			AddAttributesExtractor(messagingconv.NewExtractor[*receiveRequest, struct{}](getter, messagingconv.OperationReceive)).
			AddSpanLinksExtractor(func(_ context.Context, r *receiveRequest) []trace.Link {
				links := make([]trace.Link, 0, len(r.parents))
				for _, sc := range r.parents {
					links = append(links, trace.Link{SpanContext: sc})
				}
				return links
			}).
			AddOperationMetrics(messagingconv.OperationMetrics).
			Build(instrumenter.AlwaysKind[*receiveRequest](trace.SpanKindConsumer))
	}
	return m
}

func (m *middlewares) install(stack *middleware.Stack) error {
	if _, ok := stack.Initialize.Get(initializeID); ok {
		return nil
	}
	if err := stack.Initialize.Add(middleware.InitializeMiddlewareFunc(initializeID, m.initialize), middleware.After); err != nil {
		return err
	}
	if err := stack.Finalize.Add(middleware.FinalizeMiddlewareFunc(finalizeID, m.finalize), middleware.Before); err != nil {
		return err
	}
	return stack.Deserialize.Add(middleware.DeserializeMiddlewareFunc(deserializeID, m.deserialize), middleware.Before)
}

type responseKey struct{}

// initialize runs once per API call around every attempt: it owns the span.
func (m *middlewares) initialize(ctx context.Context, in middleware.InitializeInput, next middleware.InitializeHandler) (
	out middleware.InitializeOutput, md middleware.Metadata, err error,
) {
	if r, ok := in.Parameters.(*sqs.ReceiveMessageInput); ok {
		requestTraceHeader(r)
	}

	req := &request{
		service:   awsmiddleware.GetServiceID(ctx),
		operation: awsmiddleware.GetOperationName(ctx),
		region:    awsmiddleware.GetRegion(ctx),
		params:    in.Parameters,
	}
	if req.operation == "" {
		req.operation = operationFromParams(in.Parameters)
	}
	parent, start := ctx, time.Now()
	if m.inst.ShouldStart(ctx, req) {
		ctx = m.inst.StartAt(ctx, req, start)
		injectMessages(ctx, m.propagator, in.Parameters)

		res := &response{}
		ctx = context.WithValue(ctx, responseKey{}, res)
		out, md, err = next.HandleInitialize(ctx, in)

		res.result = out.Result
		if id, ok := awsmiddleware.GetRequestIDMetadata(md); ok {
			res.requestID = id
		}
		m.inst.End(ctx, req, res, err)
	} else {
		out, md, err = next.HandleInitialize(ctx, in)
	}

	if received, ok := out.Result.(*sqs.ReceiveMessageOutput); ok && err == nil {
		m.onReceive(parent, req, received, start, &md)
	}
	return out, md, err
}

// finalize writes the trace context to the outgoing request. It runs before
// retries and signing, so every attempt carries the header.
func (m *middlewares) finalize(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (
	middleware.FinalizeOutput, middleware.Metadata, error,
) {
	if req, ok := in.Request.(*smithyhttp.Request); ok && trace.SpanContextFromContext(ctx).IsValid() {
		carrier.Inject(ctx, m.propagator, carrier.HTTP(req.Header))
	}
	return next.HandleFinalize(ctx, in)
}

// deserialize records the transport response of the last attempt.
func (m *middlewares) deserialize(ctx context.Context, in middleware.DeserializeInput, next middleware.DeserializeHandler) (
	out middleware.DeserializeOutput, md middleware.Metadata, err error,
) {
	out, md, err = next.HandleDeserialize(ctx, in)
	if res, ok := ctx.Value(responseKey{}).(*response); ok {
		if raw, ok := out.RawResponse.(*smithyhttp.Response); ok && raw.Response != nil {
			res.statusCode = raw.StatusCode
			res.extendedRequestID = raw.Header.Get("X-Amz-Id-2")
		}
	}
	return out, md, err
}

// onReceive stores the queue and the receive span on the output metadata
// for MessageIterator, emitting the receive span when enabled.
func (m *middlewares) onReceive(parent context.Context, req *request, out *sqs.ReceiveMessageOutput, start time.Time, md *middleware.Metadata) {
	url := queueURL(req.params)
	md.Set(queueURLKey{}, url)
	if m.receive == nil || len(out.Messages) == 0 {
		return
	}

	rr := &receiveRequest{queueURL: url, messages: out.Messages}
	for i := range out.Messages {
		if sc, err := messageParent(m.propagator, &out.Messages[i]); err == nil && sc.IsValid() {
			rr.parents = append(rr.parents, sc)
		}
	}
	if !m.receive.ShouldStart(parent, rr) {
		return
	}
	ctx := m.receive.StartAt(parent, rr, start)
	m.receive.End(ctx, rr, struct{}{}, nil)
	md.Set(receiveSpanKey{}, trace.SpanContextFromContext(ctx))
}

func spanKind(r *request) trace.SpanKind {
	switch r.params.(type) {
	case *sqs.SendMessageInput, *sqs.SendMessageBatchInput:
		return trace.SpanKindProducer
	}
	return trace.SpanKindClient
}

// awsExtractor writes the attributes every AWS call shares.
type awsExtractor struct {
	experimental bool
}

func (awsExtractor) OnStart(b *attr.Builder, _ context.Context, r *request) {
	b.PutString(semconv.CloudRegion, r.region)
	if r.isSQS() {
		b.PutString(semconv.AWSSQSQueueURL, queueURL(r.params))
	}
}

func (e awsExtractor) OnEnd(b *attr.Builder, _ context.Context, _ *request, res *response, err error) {
	status := res.statusCode
	var respErr *smithyhttp.ResponseError
	if status == 0 && errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}
	if status > 0 {
		b.PutInt(semconv.HTTPResponseStatusCode, status)
	}
	b.PutString(semconv.AWSRequestID, res.requestID)
	if e.experimental {
		b.PutString(semconv.AWSExtendedRqID, res.extendedRequestID)
	}
	if err != nil {
		b.PutString(semconv.ErrorType, errorType(err))
	}
}

// errorType prefers the service error code over the Go type.
func errorType(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	return fmt.Sprintf("%T", err)
}

// sqsExtractor adds messaging attributes to the SQS operations that move
// messages.
type sqsExtractor struct {
	send    *messagingconv.Extractor[*request, *response]
	receive *messagingconv.Extractor[*request, *response]
	settle  *messagingconv.Extractor[*request, *response]
}

func newSQSExtractor(headers []string) *sqsExtractor {
	getter := sqsGetter{}
	return &sqsExtractor{
		send:    messagingconv.NewExtractor[*request, *response](getter, messagingconv.OperationSend, headers...),
		receive: messagingconv.NewExtractor[*request, *response](getter, messagingconv.OperationReceive),
		settle:  messagingconv.NewExtractor[*request, *response](getter, messagingconv.OperationSettle),
	}
}

func (e *sqsExtractor) pick(r *request) *messagingconv.Extractor[*request, *response] {
	switch r.params.(type) {
	case *sqs.SendMessageInput, *sqs.SendMessageBatchInput:
		return e.send
	case *sqs.ReceiveMessageInput:
		return e.receive
	case *sqs.DeleteMessageInput, *sqs.DeleteMessageBatchInput,
		*sqs.ChangeMessageVisibilityInput, *sqs.ChangeMessageVisibilityBatchInput:
		return e.settle
	}
	return nil
}

func (e *sqsExtractor) OnStart(b *attr.Builder, parent context.Context, r *request) {
	if x := e.pick(r); x != nil {
		x.OnStart(b, parent, r)
	}
}

func (e *sqsExtractor) OnEnd(b *attr.Builder, ctx context.Context, r *request, res *response, err error) {
	if x := e.pick(r); x != nil {
		x.OnEnd(b, ctx, r, res, err)
	}
}
