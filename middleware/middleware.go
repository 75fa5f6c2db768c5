package middleware

import (
	"context"

	"github.com/openfield/cascade/workflow"
)

// Handler is the terminal function that executes node logic.
type Handler func(ctx context.Context) (workflow.Update, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the workflow state being advanced,
// the name of the node about to run, and the next handler to call.
// Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, s *workflow.State, node string, next Handler) (workflow.Update, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, s *workflow.State, node string, next Handler) (workflow.Update, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (workflow.Update, error) {
				return mw(ctx, s, node, prev)
			}
		}
		return h(ctx)
	}
}
