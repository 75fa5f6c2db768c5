package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Start launches a new instance of the named workflow type.
func (c *Client) Start(ctx context.Context, workflowType, tenantID string, input map[string]any) (*workflow.State, error) {
	body := struct {
		TenantID string         `json:"tenant_id"`
		Input    map[string]any `json:"input"`
	}{TenantID: tenantID, Input: input}

	var s workflow.State
	if err := c.do(ctx, http.MethodPost, "/v1/workflows/"+url.PathEscape(workflowType), nil, body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the current checkpoint of a workflow instance.
func (c *Client) Get(ctx context.Context, workflowID id.WorkflowID) (*workflow.State, error) {
	var s workflow.State
	if err := c.do(ctx, http.MethodGet, "/v1/workflows/"+workflowID.String(), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// WorkflowFilter selects workflow instances for List.
type WorkflowFilter struct {
	Status   workflow.Status
	TenantID string
	Limit    int
	Offset   int
}

// List returns instances filtered by status (running by default).
func (c *Client) List(ctx context.Context, f WorkflowFilter) ([]*workflow.State, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
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

	var states []*workflow.State
	if err := c.do(ctx, http.MethodGet, "/v1/workflows", q, nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Resume delivers a human decision directly to a paused instance. Most
// resumptions should go through Resolve instead.
func (c *Client) Resume(ctx context.Context, workflowID id.WorkflowID, resp review.Response) error {
	return c.do(ctx, http.MethodPost, "/v1/workflows/"+workflowID.String()+"/resume", nil, resp, nil)
}

// Cancel cancels a non-terminal instance.
func (c *Client) Cancel(ctx context.Context, workflowID id.WorkflowID) error {
	return c.do(ctx, http.MethodPost, "/v1/workflows/"+workflowID.String()+"/cancel", nil, nil, nil)
}
