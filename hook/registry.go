package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type workflowStartedEntry struct {
	name string
	hook WorkflowStarted
}

type workflowPausedEntry struct {
	name string
	hook WorkflowPaused
}

type workflowResumedEntry struct {
	name string
	hook WorkflowResumed
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type workflowFailedEntry struct {
	name string
	hook WorkflowFailed
}

type workflowCancelledEntry struct {
	name string
	hook WorkflowCancelled
}

type nodeCompletedEntry struct {
	name string
	hook NodeCompleted
}

type nodeFailedEntry struct {
	name string
	hook NodeFailed
}

type reviewRaisedEntry struct {
	name string
	hook ReviewRaised
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	workflowStarted   []workflowStartedEntry
	workflowPaused    []workflowPausedEntry
	workflowResumed   []workflowResumedEntry
	workflowCompleted []workflowCompletedEntry
	workflowFailed    []workflowFailedEntry
	workflowCancelled []workflowCancelledEntry
	nodeCompleted     []nodeCompletedEntry
	nodeFailed        []nodeFailedEntry
	reviewRaised      []reviewRaisedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if v, ok := h.(WorkflowStarted); ok {
		r.workflowStarted = append(r.workflowStarted, workflowStartedEntry{name, v})
	}
	if v, ok := h.(WorkflowPaused); ok {
		r.workflowPaused = append(r.workflowPaused, workflowPausedEntry{name, v})
	}
	if v, ok := h.(WorkflowResumed); ok {
		r.workflowResumed = append(r.workflowResumed, workflowResumedEntry{name, v})
	}
	if v, ok := h.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, v})
	}
	if v, ok := h.(WorkflowFailed); ok {
		r.workflowFailed = append(r.workflowFailed, workflowFailedEntry{name, v})
	}
	if v, ok := h.(WorkflowCancelled); ok {
		r.workflowCancelled = append(r.workflowCancelled, workflowCancelledEntry{name, v})
	}
	if v, ok := h.(NodeCompleted); ok {
		r.nodeCompleted = append(r.nodeCompleted, nodeCompletedEntry{name, v})
	}
	if v, ok := h.(NodeFailed); ok {
		r.nodeFailed = append(r.nodeFailed, nodeFailedEntry{name, v})
	}
	if v, ok := h.(ReviewRaised); ok {
		r.reviewRaised = append(r.reviewRaised, reviewRaisedEntry{name, v})
	}
	if v, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, v})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitWorkflowStarted notifies all hooks that implement WorkflowStarted.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, s *workflow.State) {
	for _, e := range r.workflowStarted {
		if err := e.hook.OnWorkflowStarted(ctx, s); err != nil {
			r.logHookError("OnWorkflowStarted", e.name, err)
		}
	}
}

// EmitWorkflowPaused notifies all hooks that implement WorkflowPaused.
func (r *Registry) EmitWorkflowPaused(ctx context.Context, s *workflow.State) {
	for _, e := range r.workflowPaused {
		if err := e.hook.OnWorkflowPaused(ctx, s); err != nil {
			r.logHookError("OnWorkflowPaused", e.name, err)
		}
	}
}

// EmitWorkflowResumed notifies all hooks that implement WorkflowResumed.
func (r *Registry) EmitWorkflowResumed(ctx context.Context, s *workflow.State) {
	for _, e := range r.workflowResumed {
		if err := e.hook.OnWorkflowResumed(ctx, s); err != nil {
			r.logHookError("OnWorkflowResumed", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all hooks that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, s *workflow.State, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, s, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// EmitWorkflowFailed notifies all hooks that implement WorkflowFailed.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, s *workflow.State, runErr error) {
	for _, e := range r.workflowFailed {
		if err := e.hook.OnWorkflowFailed(ctx, s, runErr); err != nil {
			r.logHookError("OnWorkflowFailed", e.name, err)
		}
	}
}

// EmitWorkflowCancelled notifies all hooks that implement WorkflowCancelled.
func (r *Registry) EmitWorkflowCancelled(ctx context.Context, s *workflow.State) {
	for _, e := range r.workflowCancelled {
		if err := e.hook.OnWorkflowCancelled(ctx, s); err != nil {
			r.logHookError("OnWorkflowCancelled", e.name, err)
		}
	}
}

// EmitNodeCompleted notifies all hooks that implement NodeCompleted.
func (r *Registry) EmitNodeCompleted(ctx context.Context, s *workflow.State, node string, elapsed time.Duration) {
	for _, e := range r.nodeCompleted {
		if err := e.hook.OnNodeCompleted(ctx, s, node, elapsed); err != nil {
			r.logHookError("OnNodeCompleted", e.name, err)
		}
	}
}

// EmitNodeFailed notifies all hooks that implement NodeFailed.
func (r *Registry) EmitNodeFailed(ctx context.Context, s *workflow.State, node string, nodeErr error) {
	for _, e := range r.nodeFailed {
		if err := e.hook.OnNodeFailed(ctx, s, node, nodeErr); err != nil {
			r.logHookError("OnNodeFailed", e.name, err)
		}
	}
}

// EmitReviewRaised notifies all hooks that implement ReviewRaised.
func (r *Registry) EmitReviewRaised(ctx context.Context, req *review.Request) {
	for _, e := range r.reviewRaised {
		if err := e.hook.OnReviewRaised(ctx, req); err != nil {
			r.logHookError("OnReviewRaised", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the run.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
