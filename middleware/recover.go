package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/openfield/cascade/workflow"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, s *workflow.State, node string, next Handler) (upd workflow.Update, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("node handler panicked",
					slog.String("workflow_id", s.ID.String()),
					slog.String("node", node),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in node %s: %v", node, r)
			}
		}()
		return next(ctx)
	}
}
