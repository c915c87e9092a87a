package httpconv

import (
	"context"
	"sync"

	"github.com/JupiterMetaLabs/ioninstr/semconv"
	"go.opentelemetry.io/otel/attribute"
)

// RouteSource ranks the layers that may report a server route. Higher values
// are more specific.
type RouteSource int

const (
	// RouteSourceServer is the route known to the HTTP server itself, such as
	// the pattern matched by http.ServeMux.
	RouteSourceServer RouteSource = iota + 1
	// RouteSourceFilter is a route reported by middleware.
	RouteSourceFilter
	// RouteSourceNestedController is a route reported by a sub-router.
	RouteSourceNestedController
	// RouteSourceController is the route of the final handler.
	RouteSourceController
)

type routeHolder struct {
	mu     sync.Mutex
	route  string
	source RouteSource
}

type routeKey struct{}

// InitRoute returns a context able to hold the route of the request being
// served. It is a no-op when ctx already holds one.
func InitRoute(ctx context.Context) context.Context {
	if _, ok := ctx.Value(routeKey{}).(*routeHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, &routeHolder{})
}

// RouteCustomizer is a context customizer installing the route holder, seeded
// with the route captured at start.
func RouteCustomizer[REQ any](ctx context.Context, _ REQ, startAttrs attribute.Set) context.Context {
	ctx = InitRoute(ctx)
	if v, ok := startAttrs.Value(semconv.HTTPRoute); ok {
		UpdateRoute(ctx, RouteSourceServer, v.AsString())
	}
	return ctx
}

// UpdateRoute records route for the request in ctx unless a more specific
// source already reported one. It does nothing when ctx holds no route
// holder or route is empty.
func UpdateRoute(ctx context.Context, source RouteSource, route string) {
	h, ok := ctx.Value(routeKey{}).(*routeHolder)
	if !ok || route == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if source >= h.source {
		h.route = route
		h.source = source
	}
}

// Route returns the most specific route recorded in ctx, or "".
func Route(ctx context.Context) string {
	h, ok := ctx.Value(routeKey{}).(*routeHolder)
	if !ok {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.route
}
