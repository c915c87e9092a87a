package semconv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestKeysAreNamespaced(t *testing.T) {
	t.Parallel()

	keys := []attribute.Key{
		HTTPRequestMethod, HTTPResponseStatusCode, HTTPRoute, HTTPRequestResendCount,
		URLFull, URLScheme, ServerAddress, ServerPort, ClientAddress,
		RPCSystem, RPCService, RPCMethod, RPCGRPCStatusCode,
		MessagingSystem, MessagingDestinationName, MessagingMessageID,
		CloudRegion, AWSRequestID, AWSSQSQueueURL,
	}
	seen := make(map[attribute.Key]bool, len(keys))
	for _, k := range keys {
		assert.Contains(t, string(k), ".", "key %q must be namespaced", k)
		assert.Equal(t, strings.ToLower(string(k)), string(k))
		assert.False(t, seen[k], "duplicate key %q", k)
		seen[k] = true
	}
}

func TestHeaderPrefixes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http.request.header.", HTTPRequestHeaderPrefix)
	assert.Equal(t, "http.response.header.", HTTPResponseHeaderPrefix)
}
