// Package cascade provides a durable, human-in-the-loop workflow
// orchestration engine for Go. Workflows are directed graphs of named
// nodes; progress is checkpointed to a store after every node so that
// execution survives process restarts and can suspend indefinitely while
// waiting for a human decision.
//
// Cascade is designed as a library, not a service. Import it, configure a
// store, register workflow definitions, and drive them through the engine:
//
//	reg, err := workflow.NewRegistry(
//	    flows.DocumentProcessing(intel, gate),
//	    flows.LandAcquisition(advisor, gate),
//	    flows.ProjectLifecycle(gate),
//	)
//	eng, err := engine.New(store, reg, engine.WithLogger(logger))
//	state, err := eng.Start(ctx, "document_processing", tenantID, input)
//
// Each subsystem (workflow, review) defines its own store interface; a
// single backend implements all of them. Backends are provided for
// memory, PostgreSQL, and Redis.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package cascade
