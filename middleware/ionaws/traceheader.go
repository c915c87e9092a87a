package ionaws

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-xray-sdk-go/header"
	"go.opentelemetry.io/otel/trace"
)

// ErrMalformedTraceHeader is returned when an AWS trace header cannot be
// turned into a span context.
var ErrMalformedTraceHeader = errors.New("ionaws: malformed AWS trace header")

// traceHeaderName is the SQS system attribute holding the X-Ray header of
// the producer.
const traceHeaderName = "AWSTraceHeader"

// ParseTraceHeader parses an X-Ray trace header of the form
//
//	Root=1-<8 hex>-<24 hex>;Parent=<16 hex>;Sampled=<0|1>
//
// into a remote span context. Unknown keys are ignored; a missing or
// malformed Root or Parent is an error wrapping ErrMalformedTraceHeader.
func ParseTraceHeader(s string) (trace.SpanContext, error) {
	h := header.FromString(s)

	traceID, err := parseRoot(h.TraceID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("%w: root %q: %v", ErrMalformedTraceHeader, h.TraceID, err)
	}
	spanID, err := trace.SpanIDFromHex(h.ParentID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("%w: parent %q: %v", ErrMalformedTraceHeader, h.ParentID, err)
	}

	var flags trace.TraceFlags
	if h.SamplingDecision == header.Sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), nil
}

// parseRoot converts an X-Ray trace id "1-<epoch>-<random>" to a trace id.
func parseRoot(root string) (trace.TraceID, error) {
	version, rest, ok := strings.Cut(root, "-")
	if !ok || version != "1" {
		return trace.TraceID{}, errors.New("unsupported version")
	}
	epoch, random, ok := strings.Cut(rest, "-")
	if !ok || len(epoch) != 8 || len(random) != 24 {
		return trace.TraceID{}, errors.New("invalid length")
	}
	return trace.TraceIDFromHex(epoch + random)
}
