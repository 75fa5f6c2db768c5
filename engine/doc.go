// Package engine drives workflow instances through their definitions.
//
// The [Engine] owns the execution loop: it loads the checkpoint before
// every node, runs the node through the middleware chain, persists the
// result, and follows the definition's edges until the instance
// completes, fails, pauses for human input, or is cancelled.
//
// Execution is fire-and-forget: Start and Resume return as soon as the
// loop is launched. Tests and shutdown paths can block on [Engine.Wait].
//
// A per-workflow execution lease (held in the store, TTL-renewed each
// iteration) guarantees at most one loop advances a given instance at a
// time, even across processes sharing a store.
//
// This package sits above all subsystem packages and below the
// application layer; it exists so the root cascade package (which
// defines Entity and the error sentinels) never imports back into the
// packages that import it.
package engine
