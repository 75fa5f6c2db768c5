package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/workflow"
)

// CreateState persists a new workflow checkpoint.
func (s *Store) CreateState(ctx context.Context, st *workflow.State) error {
	wfID := st.ID.String()
	key := stateKey(wfID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: create state exists: %w", err)
	}
	if exists > 0 {
		return cascade.ErrAlreadyExists
	}

	m, err := stateToMap(st)
	if err != nil {
		return fmt.Errorf("cascade/redis: create state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, stateIDsKey, wfID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: create state: %w", err)
	}
	return nil
}

// GetState retrieves a workflow checkpoint by ID.
func (s *Store) GetState(ctx context.Context, workflowID id.WorkflowID) (*workflow.State, error) {
	vals, err := s.client.HGetAll(ctx, stateKey(workflowID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get state: %w", err)
	}
	if len(vals) == 0 {
		return nil, cascade.ErrRunNotFound
	}
	return mapToState(vals)
}

// SaveState fully overwrites an existing checkpoint.
func (s *Store) SaveState(ctx context.Context, st *workflow.State) error {
	key := stateKey(st.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: save state exists: %w", err)
	}
	if exists == 0 {
		return cascade.ErrRunNotFound
	}

	m, err := stateToMap(st)
	if err != nil {
		return fmt.Errorf("cascade/redis: save state: %w", err)
	}

	_, err = s.client.HSet(ctx, key, m).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: save state: %w", err)
	}
	return nil
}

// UpdateState applies a partial update by reading the stored checkpoint,
// merging in process, and writing it back.
func (s *Store) UpdateState(ctx context.Context, workflowID id.WorkflowID, p workflow.Patch) error {
	st, err := s.GetState(ctx, workflowID)
	if err != nil {
		return err
	}

	if p.Status != nil {
		st.Status = *p.Status
	}
	if p.CurrentNode != nil {
		st.CurrentNode = *p.CurrentNode
	}
	if p.Error != nil {
		st.Error = *p.Error
	}
	if len(p.Data) > 0 {
		if st.Data == nil {
			st.Data = make(map[string]any, len(p.Data))
		}
		for k, v := range p.Data {
			st.Data[k] = v
		}
	}
	st.Touch()

	return s.SaveState(ctx, st)
}

// ListStatesByStatus returns checkpoints in the given status, oldest first.
func (s *Store) ListStatesByStatus(ctx context.Context, status workflow.Status, opts workflow.ListOpts) ([]*workflow.State, error) {
	ids, err := s.client.SMembers(ctx, stateIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list states smembers: %w", err)
	}

	var states []*workflow.State
	for _, wfID := range ids {
		vals, getErr := s.client.HGetAll(ctx, stateKey(wfID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		st, convErr := mapToState(vals)
		if convErr != nil {
			continue
		}
		if st.Status != status {
			continue
		}
		if opts.TenantID != "" && st.TenantID != opts.TenantID {
			continue
		}
		states = append(states, st)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.Before(states[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(states) {
			return nil, nil
		}
		states = states[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(states) {
		states = states[:opts.Limit]
	}
	return states, nil
}

// AcquireLease claims the execution lease for a workflow using SET NX with
// a TTL. Expiry is enforced by Redis, so a crashed holder never wedges the
// workflow.
func (s *Store) AcquireLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error) {
	key := leaseKey(workflowID.String())
	oID := owner.String()

	ok, err := s.client.SetNX(ctx, key, oID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cascade/redis: acquire lease setnx: %w", err)
	}
	if ok {
		return true, nil
	}

	// Check if we already hold it.
	current, err := s.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("cascade/redis: acquire lease get: %w", err)
	}
	if current == oID {
		// Re-acquire: extend TTL.
		if eErr := s.client.Expire(ctx, key, ttl).Err(); eErr != nil {
			s.logger.Warn("failed to extend lease", "error", eErr)
		}
		return true, nil
	}

	return false, nil
}

// RenewLease extends a held lease.
func (s *Store) RenewLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error) {
	key := leaseKey(workflowID.String())

	current, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil // lease expired
		}
		return false, fmt.Errorf("cascade/redis: renew lease get: %w", err)
	}
	if current != owner.String() {
		return false, nil // taken over by another worker
	}

	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return false, fmt.Errorf("cascade/redis: renew lease expire: %w", err)
	}
	return true, nil
}

// ReleaseLease clears the lease if held by owner.
func (s *Store) ReleaseLease(ctx context.Context, workflowID id.WorkflowID, owner id.WorkerID) error {
	key := leaseKey(workflowID.String())

	current, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil // already expired
		}
		return fmt.Errorf("cascade/redis: release lease get: %w", err)
	}
	if current != owner.String() {
		return nil // not ours to release
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cascade/redis: release lease del: %w", err)
	}
	return nil
}

// ── helpers ──

func stateToMap(st *workflow.State) (map[string]interface{}, error) {
	data, err := json.Marshal(st.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	history, err := json.Marshal(st.History)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}

	return map[string]interface{}{
		"id":           st.ID.String(),
		"tenant_id":    st.TenantID,
		"type":         st.Type,
		"status":       string(st.Status),
		"current_node": st.CurrentNode,
		"data":         string(data),
		"history":      string(history),
		"error":        st.Error,
		"created_at":   st.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   st.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func mapToState(m map[string]string) (*workflow.State, error) {
	wfID, err := id.ParseWorkflowID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: parse workflow id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	st := &workflow.State{
		Entity: cascade.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          wfID,
		TenantID:    m["tenant_id"],
		Type:        m["type"],
		Status:      workflow.Status(m["status"]),
		CurrentNode: m["current_node"],
		Error:       m["error"],
	}

	if v := m["data"]; v != "" {
		if err := json.Unmarshal([]byte(v), &st.Data); err != nil {
			return nil, fmt.Errorf("cascade/redis: unmarshal data: %w", err)
		}
	}
	if v := m["history"]; v != "" {
		if err := json.Unmarshal([]byte(v), &st.History); err != nil {
			return nil, fmt.Errorf("cascade/redis: unmarshal history: %w", err)
		}
	}
	return st, nil
}
