package ionaws

import (
	"context"

	"github.com/JupiterMetaLabs/ioninstr/carrier"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// requestTraceHeader asks SQS to return the AWSTraceHeader system attribute
// of every received message.
func requestTraceHeader(in *sqs.ReceiveMessageInput) {
	for _, name := range in.MessageSystemAttributeNames {
		if name == types.MessageSystemAttributeNameAWSTraceHeader || name == types.MessageSystemAttributeNameAll {
			return
		}
	}
	in.MessageSystemAttributeNames = append(in.MessageSystemAttributeNames, types.MessageSystemAttributeNameAWSTraceHeader)
}

// injectMessages writes the context of ctx into the attributes of every
// message sent by params.
func injectMessages(ctx context.Context, p propagation.TextMapPropagator, params any) {
	switch in := params.(type) {
	case *sqs.SendMessageInput:
		if in.MessageAttributes == nil {
			in.MessageAttributes = map[string]types.MessageAttributeValue{}
		}
		carrier.Inject(ctx, p, carrier.SQSMessageAttributes(in.MessageAttributes))
	case *sqs.SendMessageBatchInput:
		for i := range in.Entries {
			e := &in.Entries[i]
			if e.MessageAttributes == nil {
				e.MessageAttributes = map[string]types.MessageAttributeValue{}
			}
			carrier.Inject(ctx, p, carrier.SQSMessageAttributes(e.MessageAttributes))
		}
	}
}

// messageParent returns the producer context of msg. The AWSTraceHeader
// system attribute wins over context propagated in message attributes; a
// malformed AWSTraceHeader is an error. The returned context is invalid when
// msg carries none.
func messageParent(p propagation.TextMapPropagator, msg *types.Message) (trace.SpanContext, error) {
	if h := carrier.SQSSystemAttributes(msg.Attributes).Get(traceHeaderName); h != "" {
		return ParseTraceHeader(h)
	}
	if len(msg.MessageAttributes) == 0 {
		return trace.SpanContext{}, nil
	}
	ctx := carrier.Extract(context.Background(), p, carrier.SQSMessageAttributes(msg.MessageAttributes))
	return trace.SpanContextFromContext(ctx), nil
}
