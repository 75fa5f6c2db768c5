package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
)

// Resumer resumes a paused workflow with a human response. The engine
// satisfies this interface; the indirection keeps the review package
// free of an engine import cycle.
type Resumer interface {
	Resume(ctx context.Context, workflowID id.WorkflowID, resp Response) error
}

// Service is the resolution surface the approval UI (or API) calls to
// close out review requests and wake the owning workflow.
type Service struct {
	store   Store
	resumer Resumer
	logger  *slog.Logger
}

// NewService returns a review service wired to the given store and
// workflow resumer.
func NewService(store Store, resumer Resumer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, resumer: resumer, logger: logger}
}

// Get returns a single review request by ID.
func (s *Service) Get(ctx context.Context, reviewID id.ReviewID) (*Request, error) {
	return s.store.GetRequest(ctx, reviewID)
}

// List returns review requests matching the given filters.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Request, error) {
	return s.store.ListRequests(ctx, opts)
}

// Pending returns open review requests, most useful for approval
// dashboards.
func (s *Service) Pending(ctx context.Context, opts ListOpts) ([]*Request, error) {
	opts.Status = RequestPending
	return s.store.ListRequests(ctx, opts)
}

// Resolve records a human decision on a pending review request and
// resumes the owning workflow with the response merged into its data.
// Resolving an already-resolved request returns
// cascade.ErrReviewResolved; the first decision wins.
func (s *Service) Resolve(ctx context.Context, reviewID id.ReviewID, resp Response) (*Request, error) {
	req, err := s.store.GetRequest(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, fmt.Errorf("review %s already %s: %w", reviewID, req.Status, cascade.ErrReviewResolved)
	}

	now := time.Now().UTC()
	if resp.Approved {
		req.Status = RequestApproved
	} else {
		req.Status = RequestRejected
	}
	req.ResolvedBy = resp.ResolvedBy
	req.Notes = resp.Notes
	req.ResolvedAt = &now
	req.Touch()

	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("update review %s: %w", reviewID, err)
	}

	if err := s.resumer.Resume(ctx, req.WorkflowID, resp); err != nil {
		return nil, fmt.Errorf("resume workflow %s: %w", req.WorkflowID, err)
	}

	s.logger.InfoContext(ctx, "review resolved",
		"review_id", req.ID,
		"workflow_id", req.WorkflowID,
		"status", req.Status,
		"resolved_by", resp.ResolvedBy)
	return req, nil
}
