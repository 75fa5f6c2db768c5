// Package middleware provides composable middleware for node execution.
//
// A [Middleware] is a function that wraps a node handler. Middleware are
// composed into a chain using [Chain] and applied before each node executes.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs workflow, node, duration, and outcome at each execution
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the node context after a configured duration
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-node duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, s *workflow.State, node string, next middleware.Handler) (workflow.Update, error) {
//	        // pre-processing
//	        upd, err := next(ctx)
//	        // post-processing
//	        return upd, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
