package ionaws

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel/trace"
)

// request is one AWS API call as seen by the initialize step.
type request struct {
	service   string
	operation string
	region    string
	params    any
}

// response collects what the later steps learn about a call.
type response struct {
	statusCode        int
	requestID         string
	extendedRequestID string
	result            any
}

// spanNames memoises "<Service>.<Operation>" per raw service id and
// operation.
var spanNames sync.Map

func spanName(service, operation string) string {
	key := service + "\x00" + operation
	if v, ok := spanNames.Load(key); ok {
		return v.(string)
	}
	name := normalizeService(service) + "." + normalizeOperation(operation)
	v, _ := spanNames.LoadOrStore(key, name)
	return v.(string)
}

// normalizeService strips the vendor prefix and spaces from a service id:
// "Amazon SQS" becomes "SQS".
func normalizeService(service string) string {
	service = strings.TrimSpace(service)
	for _, prefix := range []string{"Amazon", "AWS"} {
		if rest, ok := strings.CutPrefix(service, prefix); ok && rest != "" {
			service = rest
			break
		}
	}
	return strings.ReplaceAll(service, " ", "")
}

// normalizeOperation strips the suffix of an input type name:
// "ReceiveMessageInput" becomes "ReceiveMessage".
func normalizeOperation(operation string) string {
	for _, suffix := range []string{"Request", "Input"} {
		if rest, ok := strings.CutSuffix(operation, suffix); ok && rest != "" {
			return rest
		}
	}
	return operation
}

// operationFromParams derives the operation from the input type when the
// SDK did not register an operation name.
func operationFromParams(params any) string {
	if params == nil {
		return ""
	}
	name := fmt.Sprintf("%T", params)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return normalizeOperation(name)
}

// rpcGetter implements rpcconv.AttributesGetter.
type rpcGetter struct{}

func (rpcGetter) System(*request) string    { return semconv.RPCSystemAWSAPI }
func (rpcGetter) Service(r *request) string { return r.service }
func (rpcGetter) Method(r *request) string  { return r.operation }

// isSQS reports whether r targets SQS.
func (r *request) isSQS() bool {
	return r.service == sqs.ServiceID || normalizeService(r.service) == sqs.ServiceID
}

// queueURL returns the queue targeted by an SQS input.
func queueURL(params any) string {
	switch in := params.(type) {
	case *sqs.SendMessageInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.SendMessageBatchInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.ReceiveMessageInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.DeleteMessageInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.DeleteMessageBatchInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.ChangeMessageVisibilityInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.ChangeMessageVisibilityBatchInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.GetQueueAttributesInput:
		return aws.ToString(in.QueueUrl)
	case *sqs.PurgeQueueInput:
		return aws.ToString(in.QueueUrl)
	}
	return ""
}

// queueName returns the last path segment of a queue URL.
func queueName(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// messageAttribute returns the string value of a message attribute.
func messageAttribute(attrs map[string]types.MessageAttributeValue, name string) []string {
	for k, v := range attrs {
		if strings.EqualFold(k, name) && v.StringValue != nil {
			return []string{*v.StringValue}
		}
	}
	return nil
}

// sqsGetter implements messagingconv.AttributesGetter for SQS API calls.
type sqsGetter struct{}

func (sqsGetter) System(*request) string             { return semconv.MessagingSystemSQS }
func (sqsGetter) DestinationName(r *request) string  { return queueName(queueURL(r.params)) }
func (sqsGetter) DestinationTemporary(*request) bool { return false }

func (sqsGetter) MessageID(_ *request, res *response) string {
	if res == nil {
		return ""
	}
	if out, ok := res.result.(*sqs.SendMessageOutput); ok {
		return aws.ToString(out.MessageId)
	}
	return ""
}

func (sqsGetter) MessageBodySize(r *request) int64 {
	if in, ok := r.params.(*sqs.SendMessageInput); ok {
		return int64(len(aws.ToString(in.MessageBody)))
	}
	return -1
}

func (sqsGetter) BatchMessageCount(r *request, res *response) int {
	switch in := r.params.(type) {
	case *sqs.SendMessageBatchInput:
		return len(in.Entries)
	case *sqs.DeleteMessageBatchInput:
		return len(in.Entries)
	}
	if res == nil {
		return 0
	}
	if out, ok := res.result.(*sqs.ReceiveMessageOutput); ok {
		return len(out.Messages)
	}
	return 0
}

func (sqsGetter) MessageHeader(r *request, name string) []string {
	if in, ok := r.params.(*sqs.SendMessageInput); ok {
		return messageAttribute(in.MessageAttributes, name)
	}
	return nil
}

// receiveRequest pairs a ReceiveMessage call with the messages it returned.
type receiveRequest struct {
	queueURL string
	messages []types.Message
	parents  []trace.SpanContext
}

// processRequest is one received message being processed.
type processRequest struct {
	queueURL string
	message  *types.Message
	receive  trace.SpanContext
	linked   bool
}

// receiveGetter implements messagingconv.AttributesGetter for receive spans.
type receiveGetter struct{}

func (receiveGetter) System(*receiveRequest) string                  { return semconv.MessagingSystemSQS }
func (receiveGetter) DestinationName(r *receiveRequest) string       { return queueName(r.queueURL) }
func (receiveGetter) DestinationTemporary(*receiveRequest) bool      { return false }
func (receiveGetter) MessageID(*receiveRequest, struct{}) string     { return "" }
func (receiveGetter) MessageBodySize(*receiveRequest) int64          { return -1 }
func (receiveGetter) MessageHeader(*receiveRequest, string) []string { return nil }

func (receiveGetter) BatchMessageCount(r *receiveRequest, _ struct{}) int {
	return len(r.messages)
}

// processGetter implements messagingconv.AttributesGetter for process spans.
type processGetter struct{}

func (processGetter) System(*processRequest) string                   { return semconv.MessagingSystemSQS }
func (processGetter) DestinationName(r *processRequest) string        { return queueName(r.queueURL) }
func (processGetter) DestinationTemporary(*processRequest) bool       { return false }
func (processGetter) BatchMessageCount(*processRequest, struct{}) int { return 0 }

func (processGetter) MessageID(r *processRequest, _ struct{}) string {
	return aws.ToString(r.message.MessageId)
}

func (processGetter) MessageBodySize(r *processRequest) int64 {
	if r.message.Body == nil {
		return -1
	}
	return int64(len(*r.message.Body))
}

func (processGetter) MessageHeader(r *processRequest, name string) []string {
	return messageAttribute(r.message.MessageAttributes, name)
}
