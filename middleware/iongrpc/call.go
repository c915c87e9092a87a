package iongrpc

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// call is the request side of one RPC as seen by the stats handler.
type call struct {
	service string
	method  string
	md      metadata.MD

	mu       sync.Mutex
	peerAddr string
	peerPort int

	sent     atomic.Int64
	received atomic.Int64
}

type callKey struct{}

func newCall(fullMethod string, md metadata.MD) *call {
	service, method := splitFullMethod(fullMethod)
	if md == nil {
		md = metadata.MD{}
	}
	return &call{service: service, method: method, md: md}
}

// splitFullMethod splits "/pkg.Service/Method".
func splitFullMethod(fullMethod string) (string, string) {
	name := strings.TrimPrefix(fullMethod, "/")
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

func (c *call) setPeer(addr net.Addr) {
	if addr == nil {
		return
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	port, _ := strconv.Atoi(portStr)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerAddr, c.peerPort = host, port
}

func (c *call) peer() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerAddr, c.peerPort
}

// messageEvent adds a "message" event to the span in ctx. Message ids are
// counted per direction, starting at 1.
func (c *call) messageEvent(ctx context.Context, typ string, size int) {
	seq := &c.received
	if typ == semconv.MessageTypeSent {
		seq = &c.sent
	}
	trace.SpanFromContext(ctx).AddEvent("message", trace.WithAttributes(
		semconv.RPCMessageType.String(typ),
		semconv.RPCMessageID.Int64(seq.Add(1)),
		semconv.RPCMessageSize.Int(size),
	))
}

type rpcGetter struct{}

func (rpcGetter) System(*call) string    { return semconv.RPCSystemGRPC }
func (rpcGetter) Service(c *call) string { return c.service }
func (rpcGetter) Method(c *call) string  { return c.method }

// grpcExtractor adds the gRPC status code and the peer once the call ended.
type grpcExtractor struct {
	server bool
}

func (grpcExtractor) OnStart(*attr.Builder, context.Context, *call) {}

func (e grpcExtractor) OnEnd(b *attr.Builder, _ context.Context, c *call, st *status.Status, _ error) {
	code := st.Code()
	b.PutInt(semconv.RPCGRPCStatusCode, int(code))
	if isError(code, e.server) {
		b.PutString(semconv.ErrorType, code.String())
	}

	addr, port := c.peer()
	if e.server {
		b.PutString(semconv.ClientAddress, addr)
		b.PutString(semconv.NetworkPeerAddress, addr)
		if port > 0 {
			b.PutInt(semconv.NetworkPeerPort, port)
		}
		return
	}
	b.PutString(semconv.ServerAddress, addr)
	if port > 0 {
		b.PutInt(semconv.ServerPort, port)
	}
}
