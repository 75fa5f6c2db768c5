package workflow

import (
	"context"
	"time"

	"github.com/openfield/cascade/id"
)

// ListOpts controls filtering and pagination for state list queries.
type ListOpts struct {
	// Limit is the maximum number of states to return. Zero means no limit.
	Limit int
	// Offset is the number of states to skip.
	Offset int
	// TenantID filters by owning tenant. Empty means all tenants.
	TenantID string
}

// Patch is a partial checkpoint update. Nil pointer fields are left
// untouched; Data keys are shallow-merged into the existing bag.
type Patch struct {
	Status      *Status
	CurrentNode *string
	Error       *string
	Data        map[string]any
}

// Store defines the persistence contract for workflow checkpoints. The
// store exclusively owns the canonical State; the engine reloads before
// every node execution to observe externally applied pauses.
//
// Lease operations implement the per-workflow execution lease: at most
// one loop may hold the lease for a workflow at a time, which closes the
// race between a start-launched loop and a resume-launched loop.
type Store interface {
	// CreateState persists a new checkpoint. Returns ErrAlreadyExists
	// if the workflow id is already present.
	CreateState(ctx context.Context, s *State) error

	// GetState retrieves a checkpoint by workflow id. Returns
	// ErrRunNotFound if absent.
	GetState(ctx context.Context, workflowID id.WorkflowID) (*State, error)

	// SaveState fully overwrites an existing checkpoint.
	SaveState(ctx context.Context, s *State) error

	// UpdateState applies a partial update and touches UpdatedAt.
	UpdateState(ctx context.Context, workflowID id.WorkflowID, p Patch) error

	// ListStatesByStatus returns checkpoints in the given status.
	ListStatesByStatus(ctx context.Context, status Status, opts ListOpts) ([]*State, error)

	// AcquireLease attempts to claim the execution lease for a workflow.
	// Returns true if the lease is now held by owner. A lease held by a
	// different owner can be claimed only after its expiry.
	AcquireLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error)

	// RenewLease extends a held lease. Returns false if the lease is no
	// longer held by owner.
	RenewLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error)

	// ReleaseLease releases the lease if held by owner. Releasing a
	// lease not held by owner is a no-op.
	ReleaseLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID) error
}
