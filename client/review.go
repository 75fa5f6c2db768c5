package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
)

// ReviewFilter selects review requests for ListReviews.
type ReviewFilter struct {
	Status     review.RequestStatus
	WorkflowID id.WorkflowID
	TenantID   string
	Limit      int
	Offset     int
}

// ListReviews returns review requests, pending ones by default.
func (c *Client) ListReviews(ctx context.Context, f ReviewFilter) ([]*review.Request, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if !f.WorkflowID.IsNil() {
		q.Set("workflow_id", f.WorkflowID.String())
	}
	if f.TenantID != "" {
		q.Set("tenant_id", f.TenantID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var reqs []*review.Request
	if err := c.do(ctx, http.MethodGet, "/v1/reviews", q, nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// GetReview returns a single review request.
func (c *Client) GetReview(ctx context.Context, reviewID id.ReviewID) (*review.Request, error) {
	var req review.Request
	if err := c.do(ctx, http.MethodGet, "/v1/reviews/"+reviewID.String(), nil, nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Resolve records a human decision and resumes the paused workflow.
func (c *Client) Resolve(ctx context.Context, reviewID id.ReviewID, resp review.Response) (*review.Request, error) {
	var req review.Request
	if err := c.do(ctx, http.MethodPost, "/v1/reviews/"+reviewID.String()+"/resolve", nil, resp, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
