package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
)

// CreateRequest persists a new review request.
func (s *Store) CreateRequest(ctx context.Context, req *review.Request) error {
	rID := req.ID.String()
	key := reviewKey(rID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: create request exists: %w", err)
	}
	if exists > 0 {
		return cascade.ErrAlreadyExists
	}

	m, err := requestToMap(req)
	if err != nil {
		return fmt.Errorf("cascade/redis: create request: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, reviewIDsKey, rID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: create request: %w", err)
	}
	return nil
}

// GetRequest retrieves a review request by ID.
func (s *Store) GetRequest(ctx context.Context, reviewID id.ReviewID) (*review.Request, error) {
	vals, err := s.client.HGetAll(ctx, reviewKey(reviewID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get request: %w", err)
	}
	if len(vals) == 0 {
		return nil, cascade.ErrReviewNotFound
	}
	return mapToRequest(vals)
}

// UpdateRequest persists changes to an existing review request.
func (s *Store) UpdateRequest(ctx context.Context, req *review.Request) error {
	key := reviewKey(req.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: update request exists: %w", err)
	}
	if exists == 0 {
		return cascade.ErrReviewNotFound
	}

	m, err := requestToMap(req)
	if err != nil {
		return fmt.Errorf("cascade/redis: update request: %w", err)
	}
	m["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.client.HSet(ctx, key, m).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: update request: %w", err)
	}
	return nil
}

// ListRequests returns review requests matching the given options,
// oldest first.
func (s *Store) ListRequests(ctx context.Context, opts review.ListOpts) ([]*review.Request, error) {
	ids, err := s.client.SMembers(ctx, reviewIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list requests smembers: %w", err)
	}

	var reqs []*review.Request
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, reviewKey(rID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		req, convErr := mapToRequest(vals)
		if convErr != nil {
			continue
		}
		if opts.Status != "" && req.Status != opts.Status {
			continue
		}
		if !opts.WorkflowID.IsNil() && req.WorkflowID != opts.WorkflowID {
			continue
		}
		if opts.TenantID != "" && req.TenantID != opts.TenantID {
			continue
		}
		reqs = append(reqs, req)
	}

	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(reqs) {
			return nil, nil
		}
		reqs = reqs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(reqs) {
		reqs = reqs[:opts.Limit]
	}
	return reqs, nil
}

// ── helpers ──

func requestToMap(req *review.Request) (map[string]interface{}, error) {
	rctx, err := json.Marshal(req.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	m := map[string]interface{}{
		"id":           req.ID.String(),
		"tenant_id":    req.TenantID,
		"workflow_id":  req.WorkflowID.String(),
		"request_type": req.RequestType,
		"urgency":      string(req.Urgency),
		"status":       string(req.Status),
		"description":  req.Description,
		"context":      string(rctx),
		"resolved_by":  req.ResolvedBy,
		"notes":        req.Notes,
		"created_at":   req.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   req.UpdatedAt.Format(time.RFC3339Nano),
	}
	if req.ResolvedAt != nil {
		m["resolved_at"] = req.ResolvedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToRequest(m map[string]string) (*review.Request, error) {
	rID, err := id.ParseReviewID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: parse review id: %w", err)
	}
	wfID, err := id.ParseWorkflowID(m["workflow_id"])
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: parse workflow id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	req := &review.Request{
		Entity: cascade.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          rID,
		TenantID:    m["tenant_id"],
		WorkflowID:  wfID,
		RequestType: m["request_type"],
		Urgency:     review.Urgency(m["urgency"]),
		Status:      review.RequestStatus(m["status"]),
		Description: m["description"],
		ResolvedBy:  m["resolved_by"],
		Notes:       m["notes"],
	}

	if v := m["context"]; v != "" {
		if err := json.Unmarshal([]byte(v), &req.Context); err != nil {
			return nil, fmt.Errorf("cascade/redis: unmarshal context: %w", err)
		}
	}
	if v := m["resolved_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		req.ResolvedAt = &t
	}
	return req, nil
}
