package ionhttp

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// serverResponse is what the handler wrote, observed through httpsnoop.
type serverResponse struct {
	status int
	header http.Header
}

type serverGetter struct{}

func (serverGetter) Method(r *http.Request) string { return r.Method }

func (serverGetter) RequestHeader(r *http.Request, name string) []string {
	return r.Header.Values(name)
}

func (serverGetter) StatusCode(_ *http.Request, res *serverResponse, _ error) int {
	if res == nil {
		return 0
	}
	return res.status
}

func (serverGetter) ResponseHeader(_ *http.Request, res *serverResponse, name string) []string {
	if res == nil || res.header == nil {
		return nil
	}
	return res.header.Values(name)
}

func (serverGetter) ProtocolVersion(r *http.Request, _ *serverResponse) string {
	return protocolVersion(r.ProtoMajor, r.ProtoMinor)
}

func (serverGetter) Scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (serverGetter) Path(r *http.Request) string  { return r.URL.Path }
func (serverGetter) Query(r *http.Request) string { return r.URL.RawQuery }
func (serverGetter) Route(r *http.Request) string { return patternRoute(r.Pattern) }

func (serverGetter) ServerAddress(r *http.Request) string {
	host, _ := splitHostPort(r.Host)
	return host
}

func (serverGetter) ServerPort(r *http.Request) int {
	_, port := splitHostPort(r.Host)
	return port
}

func (serverGetter) PeerAddress(r *http.Request) string {
	host, _ := splitHostPort(r.RemoteAddr)
	return host
}

func (serverGetter) PeerPort(r *http.Request) int {
	_, port := splitHostPort(r.RemoteAddr)
	return port
}

type clientGetter struct{}

func (clientGetter) Method(r *http.Request) string { return r.Method }

func (clientGetter) RequestHeader(r *http.Request, name string) []string {
	return r.Header.Values(name)
}

func (clientGetter) StatusCode(_ *http.Request, res *http.Response, _ error) int {
	if res == nil {
		return 0
	}
	return res.StatusCode
}

func (clientGetter) ResponseHeader(_ *http.Request, res *http.Response, name string) []string {
	if res == nil {
		return nil
	}
	return res.Header.Values(name)
}

func (clientGetter) ProtocolVersion(_ *http.Request, res *http.Response) string {
	if res == nil {
		return ""
	}
	return protocolVersion(res.ProtoMajor, res.ProtoMinor)
}

func (clientGetter) URL(r *http.Request) string { return r.URL.String() }

func (clientGetter) ServerAddress(r *http.Request) string { return r.URL.Hostname() }

func (clientGetter) ServerPort(r *http.Request) int {
	port, err := strconv.Atoi(r.URL.Port())
	if err != nil {
		return 0
	}
	return port
}

func protocolVersion(major, minor int) string {
	switch {
	case major == 0:
		return ""
	case major >= 2 && minor == 0:
		return strconv.Itoa(major)
	default:
		return strconv.Itoa(major) + "." + strconv.Itoa(minor)
	}
}

// patternRoute strips the method and host of a ServeMux pattern:
// "GET example.com/users/{id}" becomes "/users/{id}".
func patternRoute(pattern string) string {
	if pattern == "" {
		return ""
	}
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		pattern = strings.TrimSpace(rest)
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}
	return pattern
}

func splitHostPort(hostport string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}
