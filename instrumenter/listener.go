package instrumenter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/JupiterMetaLabs/ioninstr/attr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OperationListener observes the start and end of every operation.
//
// OnStart records nothing; it returns a context carrying whatever state the
// listener needs at OnEnd. OnEnd receives the context returned by the
// instrumenter's Start (which holds the operation's span, so metric points can
// carry exemplars for it) and the final merged attributes.
type OperationListener interface {
	OnStart(ctx context.Context, startAttrs attribute.Set, start time.Time) context.Context
	OnEnd(ctx context.Context, endAttrs attribute.Set, end time.Time)
}

// OperationMetrics builds an OperationListener from a Meter.
// Instruments are created once, when the instrumenter is built.
type OperationMetrics func(meter metric.Meter) OperationListener

// NanosToMillis converts a nanosecond duration to fractional milliseconds.
func NanosToMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / float64(time.Millisecond)
}

// DurationListener records the duration of every operation, in milliseconds,
// into a histogram. Only the attribute keys in the allow-list become metric
// dimensions.
type DurationListener struct {
	hist metric.Float64Histogram
	keep map[attribute.Key]struct{}
}

type durationState struct {
	start time.Time
	attrs attribute.Set
	ended atomic.Bool
}

// NewDurationListener returns a listener recording into hist.
func NewDurationListener(hist metric.Float64Histogram, keep ...attribute.Key) *DurationListener {
	return &DurationListener{hist: hist, keep: attr.Keys(keep...)}
}

// OnStart implements OperationListener.
func (d *DurationListener) OnStart(ctx context.Context, startAttrs attribute.Set, start time.Time) context.Context {
	return context.WithValue(ctx, d, &durationState{start: start, attrs: startAttrs})
}

// OnEnd implements OperationListener. A second call for the same operation is
// ignored.
func (d *DurationListener) OnEnd(ctx context.Context, endAttrs attribute.Set, end time.Time) {
	st, ok := ctx.Value(d).(*durationState)
	if !ok || !st.ended.CompareAndSwap(false, true) {
		return
	}
	set := attr.Filter(attr.Merge(st.attrs, endAttrs), d.keep)
	d.hist.Record(ctx, NanosToMillis(end.Sub(st.start)), metric.WithAttributeSet(set))
}
