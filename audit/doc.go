// Package audit is a Cascade hook that bridges lifecycle events to an
// immutable audit trail backend.
//
// Every workflow, node, and review lifecycle hook emits a structured audit
// event through the [Recorder] interface. The hook assigns appropriate
// severity levels (info for normal operations, warning for pauses and node
// failures, critical for terminal failures) and rich metadata (workflow
// type, tenant, node name, elapsed time, errors).
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionWorkflowFailed,
//	        audit.ActionReviewRaised,
//	    ),
//	)
package audit
