package review

import (
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
)

// Urgency ranks how quickly a review request needs human attention.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// RequestStatus represents the lifecycle state of a review request.
type RequestStatus string

const (
	// RequestPending means the request awaits a human decision.
	RequestPending RequestStatus = "pending"
	// RequestApproved means a reviewer approved the request.
	RequestApproved RequestStatus = "approved"
	// RequestRejected means a reviewer rejected the request.
	RequestRejected RequestStatus = "rejected"
)

// Request is one human review item produced by an interrupt gate. Its
// resolution is the sole trigger for resuming the paused workflow.
type Request struct {
	cascade.Entity

	ID          id.ReviewID    `json:"id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	WorkflowID  id.WorkflowID  `json:"workflow_id"`
	RequestType string         `json:"request_type"`
	Urgency     Urgency        `json:"urgency"`
	Status      RequestStatus  `json:"status"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
	ResolvedBy  string         `json:"resolved_by,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// Response is the human decision delivered back to a paused workflow.
type Response struct {
	Approved   bool   `json:"approved"`
	Notes      string `json:"notes,omitempty"`
	ResolvedBy string `json:"resolvedBy,omitempty"`
}

// AsData converts the response to the shape merged into the workflow's
// data bag under workflow.KeyHITLResponse. Keys match the persisted
// checkpoint contract, so nodes and dashboards read the same names.
func (r Response) AsData() map[string]any {
	m := map[string]any{"approved": r.Approved}
	if r.Notes != "" {
		m["notes"] = r.Notes
	}
	if r.ResolvedBy != "" {
		m["resolvedBy"] = r.ResolvedBy
	}
	return m
}
