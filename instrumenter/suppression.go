package instrumenter

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// suppressionKey identifies an active operation by span kind and
// suppression category.
type suppressionKey struct {
	kind     trace.SpanKind
	category string
}

func withSuppression(ctx context.Context, kind trace.SpanKind, category string) context.Context {
	if kind == trace.SpanKindInternal {
		return ctx
	}
	return context.WithValue(ctx, suppressionKey{kind: kind, category: category}, true)
}

func suppressed(ctx context.Context, kind trace.SpanKind, category string) bool {
	if kind == trace.SpanKindInternal {
		return false
	}
	v, _ := ctx.Value(suppressionKey{kind: kind, category: category}).(bool)
	return v
}

// Suppress returns a context under which instrumenters of the given kind and
// category do not start spans. Adapters use it to hide transport-level spans
// below an operation they already describe.
func Suppress(ctx context.Context, kind trace.SpanKind, category string) context.Context {
	return withSuppression(ctx, kind, category)
}
