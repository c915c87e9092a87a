package ionhttp

import (
	"fmt"
	"io"
	"net/http"

	"github.com/JupiterMetaLabs/ioninstr/carrier"
	"github.com/JupiterMetaLabs/ioninstr/instrumenter"
	"github.com/JupiterMetaLabs/ioninstr/semconv/httpconv"
	"github.com/felixge/httpsnoop"
	"go.opentelemetry.io/otel/propagation"
)

type handler struct {
	next      http.Handler
	inst      *instrumenter.Instrumenter[*http.Request, *serverResponse]
	filter    func(*http.Request) bool
	routeFunc func(*http.Request) string
}

// Handler wraps an http.Handler with server instrumentation. Each request
// gets a SERVER span, parented on the trace context found in the request
// headers, plus http.server.duration and http.server.active_requests
// measurements.
//
// The span is named after the route when one is known: the pattern matched
// by http.ServeMux, the value returned by WithRouteFunc, or a route set with
// SetRoute from inside the handler.
func Handler(next http.Handler, opts ...Option) http.Handler {
	o := newOptions(opts)
	getter := serverGetter{}

	inst := instrumenter.NewBuilder[*http.Request, *serverResponse](ScopeName, httpconv.ServerSpanName[*http.Request, *serverResponse](getter)).
		SetSuppressionCategory("http").
		SetTracerProvider(o.tracerProvider).
		SetMeterProvider(o.meterProvider).
		SetPropagators(o.propagators).
		SetLogger(o.logger).
		AddAttributesExtractor(httpconv.NewServerExtractor[*http.Request, *serverResponse](getter, o.extractorOptions()...)).
		SetSpanStatusExtractor(httpconv.ServerStatus[*http.Request, *serverResponse](getter)).
		SetSpanNameUpdater(httpconv.ServerSpanNameUpdater[*http.Request]()).
		AddContextCustomizer(httpconv.RouteCustomizer[*http.Request]).
		AddOperationMetrics(httpconv.ServerMetrics).
		BuildServer(func(r *http.Request) propagation.TextMapCarrier { return carrier.HTTP(r.Header) })

	return &handler{next: next, inst: inst, filter: o.filter, routeFunc: o.routeFunc}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if (h.filter != nil && !h.filter(r)) || !h.inst.ShouldStart(ctx, r) {
		h.next.ServeHTTP(w, r)
		return
	}

	ctx = h.inst.Start(ctx, r)
	r = r.WithContext(ctx)

	res := &serverResponse{header: w.Header()}
	wrapped := httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				if res.status == 0 {
					res.status = code
				}
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				if res.status == 0 {
					res.status = http.StatusOK
				}
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				if res.status == 0 {
					res.status = http.StatusOK
				}
				return next(src)
			}
		},
	})

	defer func() {
		if p := recover(); p != nil {
			if res.status == 0 {
				res.status = http.StatusInternalServerError
			}
			h.inst.End(ctx, r, res, fmt.Errorf("ionhttp: handler panic: %v", p))
			panic(p)
		}
	}()

	h.next.ServeHTTP(wrapped, r)

	if route := patternRoute(r.Pattern); route != "" {
		httpconv.UpdateRoute(ctx, httpconv.RouteSourceServer, route)
	}
	if h.routeFunc != nil {
		httpconv.UpdateRoute(ctx, httpconv.RouteSourceFilter, h.routeFunc(r))
	}
	if res.status == 0 {
		res.status = http.StatusOK
	}
	h.inst.End(ctx, r, res, nil)
}

// SetRoute reports the route template of r from inside a handler wrapped by
// Handler. It takes precedence over routes known to the server itself.
func SetRoute(r *http.Request, route string) {
	httpconv.UpdateRoute(r.Context(), httpconv.RouteSourceController, route)
}
