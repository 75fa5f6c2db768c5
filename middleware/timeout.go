package middleware

import (
	"context"
	"time"

	"github.com/openfield/cascade/workflow"
)

// Timeout returns middleware that enforces a per-node execution deadline.
// If d is non-zero, a context.WithTimeout wraps the handler call. When the
// deadline is exceeded the context is cancelled and the handler should
// return context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *workflow.State, _ string, next Handler) (workflow.Update, error) {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
