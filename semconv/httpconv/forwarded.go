package httpconv

import (
	"strconv"
	"strings"
)

// ParseForwardedFor returns the address and port of the first "for=" node in
// an RFC 7239 Forwarded header. Unparseable input yields ("", 0); a port that
// is not a number yields the address alone.
func ParseForwardedFor(header string) (string, int) {
	v, ok := forwardedParam(header, "for")
	if !ok {
		return "", 0
	}
	return parseNode(v)
}

// ParseForwardedProto returns the "proto=" parameter of the first hop of a
// Forwarded header. Empty or badly quoted values yield "".
func ParseForwardedProto(header string) string {
	v, ok := forwardedParam(header, "proto")
	if !ok {
		return ""
	}
	v, ok = unquote(v)
	if !ok {
		return ""
	}
	return v
}

// ParseXForwardedFor returns the address and port of the first hop listed in
// an X-Forwarded-For header. Hops are separated by ',' or ';'.
func ParseXForwardedFor(header string) (string, int) {
	first := header
	if i := strings.IndexAny(first, ",;"); i >= 0 {
		first = first[:i]
	}
	return parseNode(first)
}

// ParseXForwardedProto returns the first scheme listed in an
// X-Forwarded-Proto header.
func ParseXForwardedProto(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

// forwardedParam returns the raw value of name in the first hop of header.
func forwardedParam(header, name string) (string, bool) {
	hop, _, _ := strings.Cut(header, ",")
	for _, pair := range strings.Split(hop, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// unquote strips surrounding double quotes. An opening quote without a
// closing one is malformed.
func unquote(v string) (string, bool) {
	if !strings.HasPrefix(v, `"`) {
		return v, true
	}
	if len(v) < 2 || !strings.HasSuffix(v, `"`) {
		return "", false
	}
	return v[1 : len(v)-1], true
}

// parseNode parses one node: "1.1.1.1", "1.1.1.1:80", "[::1]", "[::1]:80"
// or a bare IPv6 literal, optionally quoted.
func parseNode(v string) (string, int) {
	v, ok := unquote(strings.TrimSpace(v))
	if !ok || v == "" {
		return "", 0
	}

	if strings.HasPrefix(v, "[") {
		end := strings.IndexByte(v, ']')
		if end < 0 {
			return "", 0
		}
		addr := v[1:end]
		rest := v[end+1:]
		if strings.HasPrefix(rest, ":") {
			return addr, parsePort(rest[1:])
		}
		return addr, 0
	}

	// More than one colon is an unbracketed IPv6 literal, which carries no port.
	if strings.Count(v, ":") == 1 {
		host, port, _ := strings.Cut(v, ":")
		return host, parsePort(port)
	}
	return v, 0
}

func parsePort(s string) int {
	p, err := strconv.Atoi(s)
	if err != nil || p <= 0 || p > 65535 {
		return 0
	}
	return p
}
