package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfield/cascade/hook"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Compile-time interface checks.
var (
	_ hook.Hook              = (*Hook)(nil)
	_ hook.WorkflowStarted   = (*Hook)(nil)
	_ hook.WorkflowPaused    = (*Hook)(nil)
	_ hook.WorkflowResumed   = (*Hook)(nil)
	_ hook.WorkflowCompleted = (*Hook)(nil)
	_ hook.WorkflowFailed    = (*Hook)(nil)
	_ hook.WorkflowCancelled = (*Hook)(nil)
	_ hook.NodeCompleted     = (*Hook)(nil)
	_ hook.NodeFailed        = (*Hook)(nil)
	_ hook.ReviewRaised      = (*Hook)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package does not depend on any particular audit
// store — callers inject the concrete backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is a structured audit record of one lifecycle transition.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Hook bridges Cascade lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Hook struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates a Hook that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Hook {
	h := &Hook{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements hook.Hook.
func (h *Hook) Name() string { return "audit" }

// ── Workflow lifecycle hooks ────────────────────────

// OnWorkflowStarted implements hook.WorkflowStarted.
func (h *Hook) OnWorkflowStarted(ctx context.Context, s *workflow.State) error {
	return h.record(ctx, ActionWorkflowStarted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, s.ID.String(), CategoryWorkflow, nil,
		"workflow_type", s.Type,
		"tenant_id", s.TenantID,
	)
}

// OnWorkflowPaused implements hook.WorkflowPaused.
func (h *Hook) OnWorkflowPaused(ctx context.Context, s *workflow.State) error {
	return h.record(ctx, ActionWorkflowPaused, SeverityWarning, OutcomeSuccess,
		ResourceWorkflow, s.ID.String(), CategoryWorkflow, nil,
		"workflow_type", s.Type,
		"tenant_id", s.TenantID,
		"node", s.CurrentNode,
	)
}

// OnWorkflowResumed implements hook.WorkflowResumed.
func (h *Hook) OnWorkflowResumed(ctx context.Context, s *workflow.State) error {
	return h.record(ctx, ActionWorkflowResumed, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, s.ID.String(), CategoryWorkflow, nil,
		"workflow_type", s.Type,
		"tenant_id", s.TenantID,
		"node", s.CurrentNode,
	)
}

// OnWorkflowCompleted implements hook.WorkflowCompleted.
func (h *Hook) OnWorkflowCompleted(ctx context.Context, s *workflow.State, elapsed time.Duration) error {
	return h.record(ctx, ActionWorkflowCompleted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, s.ID.String(), CategoryWorkflow, nil,
		"workflow_type", s.Type,
		"tenant_id", s.TenantID,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnWorkflowFailed implements hook.WorkflowFailed.
func (h *Hook) OnWorkflowFailed(ctx context.Context, s *workflow.State, runErr error) error {
	return h.record(ctx, ActionWorkflowFailed, SeverityCritical, OutcomeFailure,
		ResourceWorkflow, s.ID.String(), CategoryWorkflow, runErr,
		"workflow_type", s.Type,
		"tenant_id", s.TenantID,
		"node", s.CurrentNode,
	)
}

// OnWorkflowCancelled implements hook.WorkflowCancelled.
func (h *Hook) OnWorkflowCancelled(ctx context.Context, s *workflow.State) error {
	return h.record(ctx, ActionWorkflowCancelled, SeverityWarning, OutcomeSuccess,
		ResourceWorkflow, s.ID.String(), CategoryWorkflow, nil,
		"workflow_type", s.Type,
		"tenant_id", s.TenantID,
	)
}

// ── Node lifecycle hooks ────────────────────────────

// OnNodeCompleted implements hook.NodeCompleted.
func (h *Hook) OnNodeCompleted(ctx context.Context, s *workflow.State, node string, elapsed time.Duration) error {
	return h.record(ctx, ActionNodeCompleted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, s.ID.String(), CategoryNode, nil,
		"workflow_type", s.Type,
		"node", node,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnNodeFailed implements hook.NodeFailed.
func (h *Hook) OnNodeFailed(ctx context.Context, s *workflow.State, node string, nodeErr error) error {
	return h.record(ctx, ActionNodeFailed, SeverityWarning, OutcomeFailure,
		ResourceWorkflow, s.ID.String(), CategoryNode, nodeErr,
		"workflow_type", s.Type,
		"node", node,
	)
}

// ── Review lifecycle hooks ──────────────────────────

// OnReviewRaised implements hook.ReviewRaised.
func (h *Hook) OnReviewRaised(ctx context.Context, req *review.Request) error {
	return h.record(ctx, ActionReviewRaised, SeverityWarning, OutcomeSuccess,
		ResourceReview, req.ID.String(), CategoryReview, nil,
		"workflow_id", req.WorkflowID.String(),
		"request_type", req.RequestType,
		"urgency", string(req.Urgency),
		"tenant_id", req.TenantID,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (h *Hook) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if h.enabled != nil && !h.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := h.recorder.Record(ctx, evt); recErr != nil {
		h.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
