// Package memory provides a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ workflow.Store = (*Store)(nil)
	_ review.Store   = (*Store)(nil)
)

// lease tracks the execution lease for one workflow instance.
type lease struct {
	owner string
	until time.Time
}

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	states  map[string]*workflow.State
	reviews map[string]*review.Request
	leases  map[string]*lease
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		states:  make(map[string]*workflow.State),
		reviews: make(map[string]*review.Request),
		leases:  make(map[string]*lease),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow Store
// ──────────────────────────────────────────────────

// CreateState persists a new workflow checkpoint.
func (m *Store) CreateState(_ context.Context, s *workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.ID.String()
	if _, exists := m.states[key]; exists {
		return cascade.ErrAlreadyExists
	}
	m.states[key] = s.Clone()
	return nil
}

// GetState retrieves a checkpoint by workflow ID.
func (m *Store) GetState(_ context.Context, workflowID id.WorkflowID) (*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[workflowID.String()]
	if !ok {
		return nil, cascade.ErrRunNotFound
	}
	return s.Clone(), nil
}

// SaveState fully overwrites an existing checkpoint.
func (m *Store) SaveState(_ context.Context, s *workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.ID.String()
	if _, ok := m.states[key]; !ok {
		return cascade.ErrRunNotFound
	}
	m.states[key] = s.Clone()
	return nil
}

// UpdateState applies a partial update to an existing checkpoint.
func (m *Store) UpdateState(_ context.Context, workflowID id.WorkflowID, p workflow.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[workflowID.String()]
	if !ok {
		return cascade.ErrRunNotFound
	}

	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.CurrentNode != nil {
		s.CurrentNode = *p.CurrentNode
	}
	if p.Error != nil {
		s.Error = *p.Error
	}
	if len(p.Data) > 0 {
		if s.Data == nil {
			s.Data = make(map[string]any, len(p.Data))
		}
		for k, v := range p.Data {
			s.Data[k] = v
		}
	}
	s.Touch()
	return nil
}

// ListStatesByStatus returns checkpoints in the given status, ordered
// by creation time.
func (m *Store) ListStatesByStatus(_ context.Context, status workflow.Status, opts workflow.ListOpts) ([]*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*workflow.State, 0)
	for _, s := range m.states {
		if s.Status != status {
			continue
		}
		if opts.TenantID != "" && s.TenantID != opts.TenantID {
			continue
		}
		matches = append(matches, s)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	matches = paginate(matches, opts.Offset, opts.Limit)

	out := make([]*workflow.State, len(matches))
	for i, s := range matches {
		out[i] = s.Clone()
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Execution leases
// ──────────────────────────────────────────────────

// AcquireLease attempts to claim the execution lease for a workflow.
func (m *Store) AcquireLease(_ context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	key := workflowID.String()
	oKey := owner.String()

	// A live lease held by someone else blocks the claim.
	if l, ok := m.leases[key]; ok && l.until.After(now) && l.owner != oKey {
		return false, nil
	}

	m.leases[key] = &lease{owner: oKey, until: now.Add(ttl)}
	return true, nil
}

// RenewLease extends a held lease.
func (m *Store) RenewLease(_ context.Context, workflowID id.WorkflowID, owner id.WorkerID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[workflowID.String()]
	if !ok || l.owner != owner.String() {
		return false, nil
	}
	l.until = time.Now().UTC().Add(ttl)
	return true, nil
}

// ReleaseLease releases the lease if held by owner.
func (m *Store) ReleaseLease(_ context.Context, workflowID id.WorkflowID, owner id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := workflowID.String()
	if l, ok := m.leases[key]; ok && l.owner == owner.String() {
		delete(m.leases, key)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Review Store
// ──────────────────────────────────────────────────

// CreateRequest persists a new review request.
func (m *Store) CreateRequest(_ context.Context, req *review.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := req.ID.String()
	if _, exists := m.reviews[key]; exists {
		return cascade.ErrAlreadyExists
	}
	m.reviews[key] = copyRequest(req)
	return nil
}

// GetRequest retrieves a review request by ID.
func (m *Store) GetRequest(_ context.Context, reviewID id.ReviewID) (*review.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.reviews[reviewID.String()]
	if !ok {
		return nil, cascade.ErrReviewNotFound
	}
	return copyRequest(req), nil
}

// UpdateRequest overwrites an existing review request.
func (m *Store) UpdateRequest(_ context.Context, req *review.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := req.ID.String()
	if _, ok := m.reviews[key]; !ok {
		return cascade.ErrReviewNotFound
	}
	m.reviews[key] = copyRequest(req)
	return nil
}

// ListRequests returns review requests matching the filters, ordered by
// creation time.
func (m *Store) ListRequests(_ context.Context, opts review.ListOpts) ([]*review.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*review.Request, 0)
	for _, req := range m.reviews {
		if opts.Status != "" && req.Status != opts.Status {
			continue
		}
		if !opts.WorkflowID.IsNil() && req.WorkflowID != opts.WorkflowID {
			continue
		}
		if opts.TenantID != "" && req.TenantID != opts.TenantID {
			continue
		}
		matches = append(matches, req)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	matches = paginate(matches, opts.Offset, opts.Limit)

	out := make([]*review.Request, len(matches))
	for i, req := range matches {
		out[i] = copyRequest(req)
	}
	return out, nil
}

func copyRequest(req *review.Request) *review.Request {
	cp := *req
	if req.Context != nil {
		cp.Context = make(map[string]any, len(req.Context))
		for k, v := range req.Context {
			cp.Context[k] = v
		}
	}
	if req.ResolvedAt != nil {
		at := *req.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
