// Package hook defines the extension system for Cascade.
// Hooks are notified of workflow lifecycle events (started, paused,
// resumed, completed, etc.) and can react to them — audit trails,
// notifications, metrics exporters.
//
// Each lifecycle event is a separate interface so hooks opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Workflow lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowStarted is called when a workflow instance begins execution.
type WorkflowStarted interface {
	OnWorkflowStarted(ctx context.Context, s *workflow.State) error
}

// WorkflowPaused is called when a workflow pauses for human input.
type WorkflowPaused interface {
	OnWorkflowPaused(ctx context.Context, s *workflow.State) error
}

// WorkflowResumed is called when a paused workflow resumes.
type WorkflowResumed interface {
	OnWorkflowResumed(ctx context.Context, s *workflow.State) error
}

// WorkflowCompleted is called after a workflow reaches the end node.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, s *workflow.State, elapsed time.Duration) error
}

// WorkflowFailed is called when a workflow fails terminally.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, s *workflow.State, err error) error
}

// WorkflowCancelled is called when a workflow is cancelled by an operator.
type WorkflowCancelled interface {
	OnWorkflowCancelled(ctx context.Context, s *workflow.State) error
}

// ──────────────────────────────────────────────────
// Node lifecycle hooks
// ──────────────────────────────────────────────────

// NodeCompleted is called after a node executes and its checkpoint is saved.
type NodeCompleted interface {
	OnNodeCompleted(ctx context.Context, s *workflow.State, node string, elapsed time.Duration) error
}

// NodeFailed is called when a node returns an error.
type NodeFailed interface {
	OnNodeFailed(ctx context.Context, s *workflow.State, node string, err error) error
}

// ──────────────────────────────────────────────────
// Review hooks
// ──────────────────────────────────────────────────

// ReviewRaised is called when a gate node opens a review request.
type ReviewRaised interface {
	OnReviewRaised(ctx context.Context, req *review.Request) error
}

// Shutdown is called during graceful engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
