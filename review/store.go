package review

import (
	"context"

	"github.com/openfield/cascade/id"
)

// ListOpts filters and pages review request listings.
type ListOpts struct {
	Status     RequestStatus
	WorkflowID id.WorkflowID
	TenantID   string
	Limit      int
	Offset     int
}

// Store persists review requests. Implementations must return
// cascade.ErrReviewNotFound for lookups of unknown IDs and
// cascade.ErrAlreadyExists for duplicate creates.
type Store interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, reviewID id.ReviewID) (*Request, error)
	UpdateRequest(ctx context.Context, req *Request) error
	ListRequests(ctx context.Context, opts ListOpts) ([]*Request, error)
}
