package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/workflow"
)

// CreateState persists a new workflow checkpoint.
func (s *Store) CreateState(ctx context.Context, st *workflow.State) error {
	data, history, err := marshalState(st)
	if err != nil {
		return fmt.Errorf("cascade/postgres: create state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cascade_workflows (
			id, tenant_id, type, status, current_node,
			data, history, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		st.ID.String(), st.TenantID, st.Type, string(st.Status), st.CurrentNode,
		data, history, st.Error, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrAlreadyExists
		}
		return fmt.Errorf("cascade/postgres: create state: %w", err)
	}
	return nil
}

// GetState retrieves a workflow checkpoint by ID.
func (s *Store) GetState(ctx context.Context, workflowID id.WorkflowID) (*workflow.State, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, tenant_id, type, status, current_node,
			data, history, error, created_at, updated_at
		FROM cascade_workflows
		WHERE id = $1`,
		workflowID.String(),
	)

	st, err := scanState(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrRunNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get state: %w", err)
	}
	return st, nil
}

// SaveState fully overwrites an existing checkpoint.
func (s *Store) SaveState(ctx context.Context, st *workflow.State) error {
	data, history, err := marshalState(st)
	if err != nil {
		return fmt.Errorf("cascade/postgres: save state: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_workflows SET
			tenant_id = $2,
			type = $3,
			status = $4,
			current_node = $5,
			data = $6,
			history = $7,
			error = $8,
			updated_at = $9
		WHERE id = $1`,
		st.ID.String(), st.TenantID, st.Type, string(st.Status), st.CurrentNode,
		data, history, st.Error, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: save state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrRunNotFound
	}
	return nil
}

// UpdateState applies a partial update. Data keys are shallow-merged into
// the stored JSONB bag with the || operator; nil pointer fields keep the
// stored value via COALESCE.
func (s *Store) UpdateState(ctx context.Context, workflowID id.WorkflowID, p workflow.Patch) error {
	merge := []byte("{}")
	if len(p.Data) > 0 {
		var err error
		merge, err = json.Marshal(p.Data)
		if err != nil {
			return fmt.Errorf("cascade/postgres: update state: marshal data: %w", err)
		}
	}

	var status *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_workflows SET
			status = COALESCE($2, status),
			current_node = COALESCE($3, current_node),
			error = COALESCE($4, error),
			data = data || $5::jsonb,
			updated_at = NOW()
		WHERE id = $1`,
		workflowID.String(), status, p.CurrentNode, p.Error, merge,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: update state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrRunNotFound
	}
	return nil
}

// ListStatesByStatus returns checkpoints in the given status, oldest first.
func (s *Store) ListStatesByStatus(ctx context.Context, status workflow.Status, opts workflow.ListOpts) ([]*workflow.State, error) {
	query := `
		SELECT
			id, tenant_id, type, status, current_node,
			data, history, error, created_at, updated_at
		FROM cascade_workflows
		WHERE status = $1`
	args := []any{string(status)}

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
		return nil, fmt.Errorf("cascade/postgres: list states: %w", err)
	}
	defer rows.Close()

	var states []*workflow.State
	for rows.Next() {
		st, scanErr := scanState(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/postgres: scan state row: %w", scanErr)
		}
		states = append(states, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate state rows: %w", err)
	}
	return states, nil
}

// AcquireLease claims the execution lease for a workflow with a single
// compare-and-set update. The claim succeeds when the lease is free,
// already held by owner, or held by another owner whose TTL has expired.
func (s *Store) AcquireLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error) {
	until := time.Now().UTC().Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_workflows
		SET lease_owner = $2, lease_until = $3
		WHERE id = $1
		  AND (lease_owner IS NULL OR lease_owner = $2 OR lease_until < NOW())`,
		workflowID.String(), owner.String(), until,
	)
	if err != nil {
		return false, fmt.Errorf("cascade/postgres: acquire lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RenewLease extends a held lease. Returns false when the lease has been
// taken over by another owner.
func (s *Store) RenewLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error) {
	until := time.Now().UTC().Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_workflows
		SET lease_until = $3
		WHERE id = $1 AND lease_owner = $2`,
		workflowID.String(), owner.String(), until,
	)
	if err != nil {
		return false, fmt.Errorf("cascade/postgres: renew lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLease clears the lease if held by owner.
func (s *Store) ReleaseLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cascade_workflows
		SET lease_owner = NULL, lease_until = NULL
		WHERE id = $1 AND lease_owner = $2`,
		workflowID.String(), owner.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: release lease: %w", err)
	}
	return nil
}

// marshalState serializes the variable-shape parts of a checkpoint.
func marshalState(st *workflow.State) (data, history []byte, err error) {
	data, err = json.Marshal(st.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal data: %w", err)
	}
	history, err = json.Marshal(st.History)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, history, nil
}

// scanState scans a single checkpoint row.
func scanState(row pgx.Row) (*workflow.State, error) {
	var (
		st        workflow.State
		idStr     string
		statusStr string
		data      []byte
		history   []byte
	)
	err := row.Scan(
		&idStr, &st.TenantID, &st.Type, &statusStr, &st.CurrentNode,
		&data, &history, &st.Error, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	st.Status = workflow.Status(statusStr)

	parsedID, parseErr := id.ParseWorkflowID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse workflow id %q: %w", idStr, parseErr)
	}
	st.ID = parsedID

	if err = json.Unmarshal(data, &st.Data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	if err = json.Unmarshal(history, &st.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &st, nil
}
