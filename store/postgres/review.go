package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
)

// CreateRequest persists a new review request.
func (s *Store) CreateRequest(ctx context.Context, req *review.Request) error {
	rctx, err := json.Marshal(req.Context)
	if err != nil {
		return fmt.Errorf("cascade/postgres: create request: marshal context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cascade_reviews (
			id, tenant_id, workflow_id, request_type, urgency, status,
			description, context, resolved_by, notes, resolved_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		req.ID.String(), req.TenantID, req.WorkflowID.String(),
		req.RequestType, string(req.Urgency), string(req.Status),
		req.Description, rctx, req.ResolvedBy, req.Notes, req.ResolvedAt,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrAlreadyExists
		}
		return fmt.Errorf("cascade/postgres: create request: %w", err)
	}
	return nil
}

// GetRequest retrieves a review request by ID.
func (s *Store) GetRequest(ctx context.Context, reviewID id.ReviewID) (*review.Request, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, tenant_id, workflow_id, request_type, urgency, status,
			description, context, resolved_by, notes, resolved_at,
			created_at, updated_at
		FROM cascade_reviews
		WHERE id = $1`,
		reviewID.String(),
	)

	req, err := scanRequest(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrReviewNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get request: %w", err)
	}
	return req, nil
}

// UpdateRequest persists changes to an existing review request.
func (s *Store) UpdateRequest(ctx context.Context, req *review.Request) error {
	rctx, err := json.Marshal(req.Context)
	if err != nil {
		return fmt.Errorf("cascade/postgres: update request: marshal context: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_reviews SET
			urgency = $2,
			status = $3,
			description = $4,
			context = $5,
			resolved_by = $6,
			notes = $7,
			resolved_at = $8,
			updated_at = $9
		WHERE id = $1`,
		req.ID.String(), string(req.Urgency), string(req.Status),
		req.Description, rctx, req.ResolvedBy, req.Notes, req.ResolvedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrReviewNotFound
	}
	return nil
}

// ListRequests returns review requests matching the given options,
// oldest first.
func (s *Store) ListRequests(ctx context.Context, opts review.ListOpts) ([]*review.Request, error) {
	query := `
		SELECT
			id, tenant_id, workflow_id, request_type, urgency, status,
			description, context, resolved_by, notes, resolved_at,
			created_at, updated_at
		FROM cascade_reviews
		WHERE 1=1`
	var args []any

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !opts.WorkflowID.IsNil() {
		args = append(args, opts.WorkflowID.String())
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if opts.TenantID != "" {
		args = append(args, opts.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}

	query += " ORDER BY created_at ASC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list requests: %w", err)
	}
	defer rows.Close()

	var reqs []*review.Request
	for rows.Next() {
		req, scanErr := scanRequest(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/postgres: scan request row: %w", scanErr)
		}
		reqs = append(reqs, req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate request rows: %w", err)
	}
	return reqs, nil
}

// scanRequest scans a single review request row.
func scanRequest(row pgx.Row) (*review.Request, error) {
	var (
		req        review.Request
		idStr      string
		wfStr      string
		urgencyStr string
		statusStr  string
		rctx       []byte
	)
	err := row.Scan(
		&idStr, &req.TenantID, &wfStr, &req.RequestType, &urgencyStr, &statusStr,
		&req.Description, &rctx, &req.ResolvedBy, &req.Notes, &req.ResolvedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Urgency = review.Urgency(urgencyStr)
	req.Status = review.RequestStatus(statusStr)

	parsedID, parseErr := id.ParseReviewID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse review id %q: %w", idStr, parseErr)
	}
	req.ID = parsedID

	parsedWF, parseErr := id.ParseWorkflowID(wfStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse workflow id %q: %w", wfStr, parseErr)
	}
	req.WorkflowID = parsedWF

	if err = json.Unmarshal(rctx, &req.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &req, nil
}
