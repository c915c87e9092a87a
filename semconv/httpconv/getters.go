// Package httpconv maps HTTP requests and responses to the HTTP semantic
// conventions: attribute extractors, span names, span status, the server route
// holder, the client resend counter and duration metrics.
//
// Protocol adapters expose their request and response types through
// ClientAttributesGetter or ServerAttributesGetter; nothing in this package
// inspects them directly.
package httpconv

// AttributesGetter is the part of the HTTP getter shared by clients and
// servers.
type AttributesGetter[REQ, RES any] interface {
	// Method returns the request method as sent on the wire.
	Method(req REQ) string
	// RequestHeader returns every value of the named request header.
	RequestHeader(req REQ, name string) []string
	// StatusCode returns the response status, or 0 when there is none.
	// 0 is reserved for "no status" and leaves the span status unset; any
	// other code below 100 is out of range and maps to an error.
	StatusCode(req REQ, res RES, err error) int
	// ResponseHeader returns every value of the named response header.
	ResponseHeader(req REQ, res RES, name string) []string
	// ProtocolVersion returns the HTTP version, such as "1.1" or "2".
	ProtocolVersion(req REQ, res RES) string
}

// ClientAttributesGetter exposes an outgoing HTTP call.
type ClientAttributesGetter[REQ, RES any] interface {
	AttributesGetter[REQ, RES]
	// URL returns the absolute request URL.
	URL(req REQ) string
	// ServerAddress returns the logical host being called.
	ServerAddress(req REQ) string
	// ServerPort returns the port being called, or 0 when unknown.
	ServerPort(req REQ) int
}

// ServerAttributesGetter exposes an incoming HTTP request.
type ServerAttributesGetter[REQ, RES any] interface {
	AttributesGetter[REQ, RES]
	// Scheme returns the scheme of the connection, "http" or "https".
	Scheme(req REQ) string
	// Path returns the request path.
	Path(req REQ) string
	// Query returns the raw query string without the leading '?'.
	Query(req REQ) string
	// Route returns the route template matched by the server, if any.
	Route(req REQ) string
	// ServerAddress and ServerPort describe the host the client addressed,
	// usually taken from the Host header.
	ServerAddress(req REQ) string
	ServerPort(req REQ) int
	// PeerAddress and PeerPort describe the socket peer.
	PeerAddress(req REQ) string
	PeerPort(req REQ) int
}
