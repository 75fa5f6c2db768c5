package audit

// Audit event actions. Each constant corresponds to one lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionWorkflowStarted   = "workflow.started"
	ActionWorkflowPaused    = "workflow.paused"
	ActionWorkflowResumed   = "workflow.resumed"
	ActionWorkflowCompleted = "workflow.completed"
	ActionWorkflowFailed    = "workflow.failed"
	ActionWorkflowCancelled = "workflow.cancelled"
	ActionNodeCompleted     = "node.completed"
	ActionNodeFailed        = "node.failed"
	ActionReviewRaised      = "review.raised"
)

// Audit event categories group related actions.
const (
	CategoryWorkflow = "cascade.workflow"
	CategoryNode     = "cascade.node"
	CategoryReview   = "cascade.review"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceWorkflow = "workflow"
	ResourceReview   = "review_request"
)

// AllActions returns every action this hook can emit.
func AllActions() []string {
	return []string{
		ActionWorkflowStarted,
		ActionWorkflowPaused,
		ActionWorkflowResumed,
		ActionWorkflowCompleted,
		ActionWorkflowFailed,
		ActionWorkflowCancelled,
		ActionNodeCompleted,
		ActionNodeFailed,
		ActionReviewRaised,
	}
}
