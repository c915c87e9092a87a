package httpconv

import (
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"go.opentelemetry.io/otel/codes"
)

// ClientStatusCode maps a response status of an outgoing call to a span
// status. 1xx-3xx leave the status unset; 4xx, 5xx and anything outside
// 100-599 are errors.
func ClientStatusCode(code int) codes.Code {
	if code >= 100 && code < 400 {
		return codes.Unset
	}
	return codes.Error
}

// ServerStatusCode maps a response status of a served request to a span
// status. Client errors (4xx) are not server faults and leave the status
// unset; 5xx and anything outside 100-599 are errors.
func ServerStatusCode(code int) codes.Code {
	if code >= 100 && code < 500 {
		return codes.Unset
	}
	return codes.Error
}

// ClientStatus returns the span status extractor for HTTP clients. A getter
// status of 0 means no response and leaves the status unset.
func ClientStatus[REQ, RES any](getter AttributesGetter[REQ, RES]) instrumenter.SpanStatusExtractor[REQ, RES] {
	return statusExtractor(getter, ClientStatusCode)
}

// ServerStatus returns the span status extractor for HTTP servers. A getter
// status of 0 means no response and leaves the status unset.
func ServerStatus[REQ, RES any](getter AttributesGetter[REQ, RES]) instrumenter.SpanStatusExtractor[REQ, RES] {
	return statusExtractor(getter, ServerStatusCode)
}

func statusExtractor[REQ, RES any](getter AttributesGetter[REQ, RES], mapCode func(int) codes.Code) instrumenter.SpanStatusExtractor[REQ, RES] {
	return func(req REQ, res RES, err error) (codes.Code, string) {
		if err != nil {
			return codes.Error, instrumenter.ErrorDescription(err)
		}
		code := getter.StatusCode(req, res, nil)
		if code == 0 {
			return codes.Unset, ""
		}
		return mapCode(code), ""
	}
}
