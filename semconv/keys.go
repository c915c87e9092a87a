// Package semconv holds the attribute keys emitted by the instrumentation in this module.
//
// Keys follow the OpenTelemetry semantic conventions. They are declared here,
// rather than imported from a versioned semconv package, so that every extractor
// agrees on one vocabulary regardless of which SDK version the host links.
package semconv

import "go.opentelemetry.io/otel/attribute"

// HTTP attributes.
const (
	HTTPRequestMethod        attribute.Key = "http.request.method"
	HTTPRequestMethodOrig    attribute.Key = "http.request.method_original"
	HTTPResponseStatusCode   attribute.Key = "http.response.status_code"
	HTTPRoute                attribute.Key = "http.route"
	HTTPRequestResendCount   attribute.Key = "http.request.resend_count"
	HTTPRequestBodySize      attribute.Key = "http.request.body.size"
	HTTPResponseBodySize     attribute.Key = "http.response.body.size"
	HTTPRequestHeaderPrefix                = "http.request.header."
	HTTPResponseHeaderPrefix               = "http.response.header."
)

// URL attributes.
const (
	URLFull   attribute.Key = "url.full"
	URLScheme attribute.Key = "url.scheme"
	URLPath   attribute.Key = "url.path"
	URLQuery  attribute.Key = "url.query"
)

// Network attributes.
const (
	ServerAddress          attribute.Key = "server.address"
	ServerPort             attribute.Key = "server.port"
	ClientAddress          attribute.Key = "client.address"
	ClientPort             attribute.Key = "client.port"
	NetworkPeerAddress     attribute.Key = "network.peer.address"
	NetworkPeerPort        attribute.Key = "network.peer.port"
	NetworkProtocolName    attribute.Key = "network.protocol.name"
	NetworkProtocolVersion attribute.Key = "network.protocol.version"
	UserAgentOriginal      attribute.Key = "user_agent.original"
)

// Error attributes.
const (
	ErrorType        attribute.Key = "error.type"
	ExceptionType    attribute.Key = "exception.type"
	ExceptionMessage attribute.Key = "exception.message"
)

// RPC attributes.
const (
	RPCSystem         attribute.Key = "rpc.system"
	RPCService        attribute.Key = "rpc.service"
	RPCMethod         attribute.Key = "rpc.method"
	RPCGRPCStatusCode attribute.Key = "rpc.grpc.status_code"
	RPCMessageType    attribute.Key = "rpc.message.type"
	RPCMessageID      attribute.Key = "rpc.message.id"
	RPCMessageSize    attribute.Key = "rpc.message.uncompressed_size"
)

// Messaging attributes.
const (
	MessagingSystem            attribute.Key = "messaging.system"
	MessagingOperationName     attribute.Key = "messaging.operation.name"
	MessagingOperationType     attribute.Key = "messaging.operation.type"
	MessagingDestinationName   attribute.Key = "messaging.destination.name"
	MessagingDestinationTemp   attribute.Key = "messaging.destination.temporary"
	MessagingMessageID         attribute.Key = "messaging.message.id"
	MessagingMessageBodySize   attribute.Key = "messaging.message.body.size"
	MessagingBatchMessageCount attribute.Key = "messaging.batch.message_count"
	MessagingHeaderPrefix                    = "messaging.header."
)

// Cloud and AWS attributes.
const (
	CloudRegion     attribute.Key = "cloud.region"
	AWSRequestID    attribute.Key = "aws.request_id"
	AWSSQSQueueURL  attribute.Key = "aws.sqs.queue_url"
	AWSExtendedRqID attribute.Key = "aws.extended_request_id"
)

// Well-known attribute values.
const (
	RPCSystemGRPC   = "grpc"
	RPCSystemAWSAPI = "aws-api"

	MessagingSystemSQS = "aws_sqs"

	MessageTypeSent     = "SENT"
	MessageTypeReceived = "RECEIVED"

	ErrorTypeOther = "_OTHER"
)
