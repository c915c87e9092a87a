// Package carrier adapts transport-specific header containers to
// propagation.TextMapCarrier so one propagator can read and write trace context
// on HTTP requests, gRPC metadata, SQS message attributes and AWS SDK requests.
package carrier

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// Inject writes the span context of ctx into c using p.
// A nil propagator is a no-op.
func Inject(ctx context.Context, p propagation.TextMapPropagator, c propagation.TextMapCarrier) {
	if p == nil || c == nil {
		return
	}
	p.Inject(ctx, c)
}

// Extract returns ctx enriched with whatever p finds in c.
// A nil propagator returns ctx unchanged.
func Extract(ctx context.Context, p propagation.TextMapPropagator, c propagation.TextMapCarrier) context.Context {
	if p == nil || c == nil {
		return ctx
	}
	return p.Extract(ctx, c)
}

// HTTP returns a carrier over h.
func HTTP(h http.Header) propagation.TextMapCarrier {
	return propagation.HeaderCarrier(h)
}

// Metadata is a carrier over gRPC metadata. Keys are lower-cased by the
// metadata package itself.
type Metadata struct {
	MD *metadata.MD
}

var _ propagation.TextMapCarrier = Metadata{}

// Get returns the first value for key.
func (m Metadata) Get(key string) string {
	values := m.MD.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set replaces the values for key.
func (m Metadata) Set(key, value string) {
	m.MD.Set(key, value)
}

// Keys lists the metadata keys.
func (m Metadata) Keys() []string {
	out := make([]string, 0, len(*m.MD))
	for k := range *m.MD {
		out = append(out, k)
	}
	return out
}

// MaxSQSMessageAttributes is the SQS service limit on message attributes.
// Injection skips writing when the message is already at the limit.
const MaxSQSMessageAttributes = 10

// SQSMessageAttributes is a carrier over the user attributes of an SQS message.
type SQSMessageAttributes map[string]sqstypes.MessageAttributeValue

var _ propagation.TextMapCarrier = SQSMessageAttributes{}

// Get returns the string value of attribute key, matching case-insensitively.
func (a SQSMessageAttributes) Get(key string) string {
	if v, ok := a[key]; ok {
		return aws.ToString(v.StringValue)
	}
	for k, v := range a {
		if strings.EqualFold(k, key) {
			return aws.ToString(v.StringValue)
		}
	}
	return ""
}

// Set stores a String-typed attribute unless the SQS attribute limit is reached.
func (a SQSMessageAttributes) Set(key, value string) {
	if _, exists := a[key]; !exists && len(a) >= MaxSQSMessageAttributes {
		return
	}
	a[key] = sqstypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

// Keys lists the attribute names.
func (a SQSMessageAttributes) Keys() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	return out
}

// SQSSystemAttributes is a read-only carrier over the system attributes of a
// received SQS message (where AWSTraceHeader lives).
type SQSSystemAttributes map[string]string

var _ propagation.TextMapCarrier = SQSSystemAttributes{}

// Get returns the system attribute for key.
func (a SQSSystemAttributes) Get(key string) string {
	if v, ok := a[key]; ok {
		return v
	}
	for k, v := range a {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set is a no-op: system attributes are assigned by SQS.
func (SQSSystemAttributes) Set(string, string) {}

// Keys lists the attribute names.
func (a SQSSystemAttributes) Keys() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	return out
}
