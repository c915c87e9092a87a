package httpconv

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type extractorConfig struct {
	requestHeaders  []string
	responseHeaders []string
	experimental    bool
}

// ExtractorOption configures an HTTP attributes extractor.
type ExtractorOption interface {
	apply(*extractorConfig)
}

type extractorOptionFunc func(*extractorConfig)

func (f extractorOptionFunc) apply(c *extractorConfig) { f(c) }

// WithCapturedRequestHeaders records the named request headers as
// http.request.header.<name> string arrays. Names are matched
// case-insensitively.
func WithCapturedRequestHeaders(names ...string) ExtractorOption {
	return extractorOptionFunc(func(c *extractorConfig) {
		c.requestHeaders = normalizeHeaderNames(names)
	})
}

// WithCapturedResponseHeaders records the named response headers as
// http.response.header.<name> string arrays.
func WithCapturedResponseHeaders(names ...string) ExtractorOption {
	return extractorOptionFunc(func(c *extractorConfig) {
		c.responseHeaders = normalizeHeaderNames(names)
	})
}

// WithExperimentalAttributes enables attributes that are not yet stable in the
// semantic conventions: request and response body sizes.
func WithExperimentalAttributes(enabled bool) ExtractorOption {
	return extractorOptionFunc(func(c *extractorConfig) {
		c.experimental = enabled
	})
}

func newExtractorConfig(opts []ExtractorOption) extractorConfig {
	var c extractorConfig
	for _, o := range opts {
		o.apply(&c)
	}
	return c
}

func normalizeHeaderNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// HeaderAttributeKey returns the attribute key of a captured header.
func HeaderAttributeKey(prefix, name string) attribute.Key {
	return attribute.Key(prefix + strings.ReplaceAll(strings.ToLower(name), "-", "_"))
}

// ClientExtractor writes the attributes of an outgoing HTTP call.
type ClientExtractor[REQ, RES any] struct {
	getter ClientAttributesGetter[REQ, RES]
	cfg    extractorConfig
}

// NewClientExtractor returns a client extractor reading through getter.
// Options are resolved once, here.
func NewClientExtractor[REQ, RES any](getter ClientAttributesGetter[REQ, RES], opts ...ExtractorOption) *ClientExtractor[REQ, RES] {
	return &ClientExtractor[REQ, RES]{getter: getter, cfg: newExtractorConfig(opts)}
}

// OnStart implements instrumenter.AttributesExtractor.
func (e *ClientExtractor[REQ, RES]) OnStart(b *attr.Builder, parent context.Context, req REQ) {
	putMethod(b, e.getter.Method(req))

	rawURL := e.getter.URL(req)
	b.PutString(semconv.URLFull, SanitizeURL(rawURL))
	b.PutString(semconv.ServerAddress, e.getter.ServerAddress(req))
	putPort(b, semconv.ServerPort, e.getter.ServerPort(req), schemeOf(rawURL))

	if n := ResendCountAndIncrement(parent); n > 0 {
		b.PutInt64(semconv.HTTPRequestResendCount, n)
	}

	for _, name := range e.cfg.requestHeaders {
		b.PutStringSlice(HeaderAttributeKey(semconv.HTTPRequestHeaderPrefix, name), e.getter.RequestHeader(req, name))
	}
	if e.cfg.experimental {
		putContentLength(b, semconv.HTTPRequestBodySize, e.getter.RequestHeader(req, "content-length"))
	}
}

// OnEnd implements instrumenter.AttributesExtractor.
func (e *ClientExtractor[REQ, RES]) OnEnd(b *attr.Builder, _ context.Context, req REQ, res RES, err error) {
	code := e.getter.StatusCode(req, res, err)
	if code > 0 {
		b.PutInt(semconv.HTTPResponseStatusCode, code)
	}
	b.PutString(semconv.NetworkProtocolVersion, e.getter.ProtocolVersion(req, res))
	putErrorType(b, err, code, ClientStatusCode)

	for _, name := range e.cfg.responseHeaders {
		b.PutStringSlice(HeaderAttributeKey(semconv.HTTPResponseHeaderPrefix, name), e.getter.ResponseHeader(req, res, name))
	}
	if e.cfg.experimental {
		putContentLength(b, semconv.HTTPResponseBodySize, e.getter.ResponseHeader(req, res, "content-length"))
	}
}

// ServerExtractor writes the attributes of a served HTTP request.
type ServerExtractor[REQ, RES any] struct {
	getter ServerAttributesGetter[REQ, RES]
	cfg    extractorConfig
}

// NewServerExtractor returns a server extractor reading through getter.
func NewServerExtractor[REQ, RES any](getter ServerAttributesGetter[REQ, RES], opts ...ExtractorOption) *ServerExtractor[REQ, RES] {
	return &ServerExtractor[REQ, RES]{getter: getter, cfg: newExtractorConfig(opts)}
}

// OnStart implements instrumenter.AttributesExtractor.
func (e *ServerExtractor[REQ, RES]) OnStart(b *attr.Builder, _ context.Context, req REQ) {
	putMethod(b, e.getter.Method(req))

	scheme := e.scheme(req)
	b.PutString(semconv.URLScheme, scheme)
	b.PutString(semconv.URLPath, e.getter.Path(req))
	b.PutString(semconv.URLQuery, e.getter.Query(req))
	b.PutString(semconv.ServerAddress, e.getter.ServerAddress(req))
	putPort(b, semconv.ServerPort, e.getter.ServerPort(req), scheme)

	peerAddr, peerPort := e.getter.PeerAddress(req), e.getter.PeerPort(req)
	clientAddr, clientPort := e.clientAddress(req)
	if clientAddr == "" {
		clientAddr, clientPort = peerAddr, peerPort
	}
	b.PutString(semconv.ClientAddress, clientAddr)
	if clientPort > 0 {
		b.PutInt(semconv.ClientPort, clientPort)
	}
	b.PutString(semconv.NetworkPeerAddress, peerAddr)
	if peerPort > 0 {
		b.PutInt(semconv.NetworkPeerPort, peerPort)
	}

	b.PutString(semconv.UserAgentOriginal, first(e.getter.RequestHeader(req, "user-agent")))
	b.PutString(semconv.HTTPRoute, e.getter.Route(req))

	for _, name := range e.cfg.requestHeaders {
		b.PutStringSlice(HeaderAttributeKey(semconv.HTTPRequestHeaderPrefix, name), e.getter.RequestHeader(req, name))
	}
	if e.cfg.experimental {
		putContentLength(b, semconv.HTTPRequestBodySize, e.getter.RequestHeader(req, "content-length"))
	}
}

// OnEnd implements instrumenter.AttributesExtractor.
func (e *ServerExtractor[REQ, RES]) OnEnd(b *attr.Builder, ctx context.Context, req REQ, res RES, err error) {
	code := e.getter.StatusCode(req, res, err)
	if code > 0 {
		b.PutInt(semconv.HTTPResponseStatusCode, code)
	}
	b.PutString(semconv.NetworkProtocolVersion, e.getter.ProtocolVersion(req, res))
	b.PutString(semconv.HTTPRoute, Route(ctx))
	putErrorType(b, err, code, ServerStatusCode)

	for _, name := range e.cfg.responseHeaders {
		b.PutStringSlice(HeaderAttributeKey(semconv.HTTPResponseHeaderPrefix, name), e.getter.ResponseHeader(req, res, name))
	}
	if e.cfg.experimental {
		putContentLength(b, semconv.HTTPResponseBodySize, e.getter.ResponseHeader(req, res, "content-length"))
	}
}

// scheme prefers the scheme reported by a proxy over the connection scheme.
func (e *ServerExtractor[REQ, RES]) scheme(req REQ) string {
	if proto := ParseForwardedProto(first(e.getter.RequestHeader(req, "forwarded"))); proto != "" {
		return proto
	}
	if proto := ParseXForwardedProto(first(e.getter.RequestHeader(req, "x-forwarded-proto"))); proto != "" {
		return proto
	}
	return e.getter.Scheme(req)
}

func (e *ServerExtractor[REQ, RES]) clientAddress(req REQ) (string, int) {
	if addr, port := ParseForwardedFor(first(e.getter.RequestHeader(req, "forwarded"))); addr != "" {
		return addr, port
	}
	return ParseXForwardedFor(first(e.getter.RequestHeader(req, "x-forwarded-for")))
}

func putMethod(b *attr.Builder, method string) {
	if method == "" {
		return
	}
	if IsKnownMethod(method) {
		b.PutString(semconv.HTTPRequestMethod, method)
		return
	}
	b.PutString(semconv.HTTPRequestMethod, semconv.ErrorTypeOther)
	b.PutString(semconv.HTTPRequestMethodOrig, method)
}

// putPort records port unless it is unknown or the default port of scheme.
func putPort(b *attr.Builder, key attribute.Key, port int, scheme string) {
	if port <= 0 || port == DefaultPort(scheme) {
		return
	}
	b.PutInt(key, port)
}

func putErrorType(b *attr.Builder, err error, code int, mapCode func(int) codes.Code) {
	switch {
	case err != nil:
		b.PutString(semconv.ErrorType, fmt.Sprintf("%T", err))
	case code == 0:
	case code < 100 || code > 599:
		b.PutString(semconv.ErrorType, semconv.ErrorTypeOther)
	case mapCode(code) == codes.Error:
		b.PutString(semconv.ErrorType, strconv.Itoa(code))
	}
}

func putContentLength(b *attr.Builder, key attribute.Key, values []string) {
	n, err := strconv.ParseInt(strings.TrimSpace(first(values)), 10, 64)
	if err != nil || n < 0 {
		return
	}
	b.PutInt64(key, n)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
