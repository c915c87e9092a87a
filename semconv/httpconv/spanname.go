package httpconv

import (
	"context"

	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
)

const unknownMethodSpanName = "HTTP request"

var knownMethods = map[string]struct{}{
	"CONNECT": {}, "DELETE": {}, "GET": {}, "HEAD": {}, "OPTIONS": {},
	"PATCH": {}, "POST": {}, "PUT": {}, "TRACE": {},
}

// IsKnownMethod reports whether method is one of the RFC 9110 methods or
// PATCH. Matching is case-sensitive.
func IsKnownMethod(method string) bool {
	_, ok := knownMethods[method]
	return ok
}

func methodSpanName(method string) string {
	if !IsKnownMethod(method) {
		return unknownMethodSpanName
	}
	return "HTTP " + method
}

// ClientSpanName names client spans "HTTP {METHOD}", or "HTTP request" when
// the method is unknown.
func ClientSpanName[REQ, RES any](getter ClientAttributesGetter[REQ, RES]) instrumenter.SpanNameExtractor[REQ] {
	return func(req REQ) string {
		return methodSpanName(getter.Method(req))
	}
}

// ServerSpanName names server spans after the route template when the
// server reports one, and "HTTP {METHOD}" otherwise.
func ServerSpanName[REQ, RES any](getter ServerAttributesGetter[REQ, RES]) instrumenter.SpanNameExtractor[REQ] {
	return func(req REQ) string {
		if route := getter.Route(req); route != "" {
			return route
		}
		return methodSpanName(getter.Method(req))
	}
}

// ServerSpanNameUpdater renames the server span to the route held in the
// context once the request has been handled. Nothing changes when no layer
// reported a route.
func ServerSpanNameUpdater[REQ any]() instrumenter.SpanNameUpdater[REQ] {
	return func(ctx context.Context, _ REQ) string {
		return Route(ctx)
	}
}
