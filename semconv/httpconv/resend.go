package httpconv

import (
	"context"
	"sync/atomic"
)

type resendKey struct{}

// InitResendCount returns a context counting the attempts of one logical
// client call. Attempts made under the returned context, including redirects
// and retries on other goroutines, share the counter.
func InitResendCount(ctx context.Context) context.Context {
	return context.WithValue(ctx, resendKey{}, new(atomic.Int64))
}

// ResendCountAndIncrement returns the number of attempts already made under
// ctx and counts one more. It returns 0 and counts nothing when ctx was not
// initialized with InitResendCount.
func ResendCountAndIncrement(ctx context.Context) int64 {
	c, ok := ctx.Value(resendKey{}).(*atomic.Int64)
	if !ok {
		return 0
	}
	return c.Add(1) - 1
}

// InitResendCountAt is InitResendCount for a call that already made n
// attempts.
func InitResendCountAt(ctx context.Context, n int64) context.Context {
	c := new(atomic.Int64)
	c.Store(n)
	return context.WithValue(ctx, resendKey{}, c)
}

// HasResendCount reports whether ctx carries a resend counter.
func HasResendCount(ctx context.Context) bool {
	_, ok := ctx.Value(resendKey{}).(*atomic.Int64)
	return ok
}
