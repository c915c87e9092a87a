// Package otel sets up the OpenTelemetry log, tracer and meter providers
// behind the ion package.
package otel

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
)

// setupTimeout bounds exporter and resource creation.
const setupTimeout = 30 * time.Second

// processEndpoint strips an optional scheme from endpoint. The scheme, when
// present, overrides configInsecure: http means plaintext and https means TLS.
// A missing port is filled with the scheme default.
func processEndpoint(endpoint string, configInsecure bool) (string, bool, error) {
	if endpoint == "" {
		return "", configInsecure, nil
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, configInsecure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}

	var insecure bool
	var defaultPort string
	switch u.Scheme {
	case "http":
		insecure, defaultPort = true, "80"
	case "https":
		insecure, defaultPort = false, "443"
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), defaultPort)
	}
	return host, insecure, nil
}

// injectBasicAuth returns headers plus a basic Authorization header when both
// username and password are set. The input map is not modified.
func injectBasicAuth(headers map[string]string, username, password string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	if username != "" && password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		out["Authorization"] = "Basic " + token
	}
	return out
}

func newResource(ctx context.Context, serviceName, version string, extra map[string]string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	}
	for k, v := range extra {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithOS(),
		resource.WithProcess(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTEL resource: %w", err)
	}
	return res, nil
}
