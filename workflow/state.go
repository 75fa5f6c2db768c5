package workflow

import (
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
)

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	// StatusPending means the instance is created but no node has run yet.
	StatusPending Status = "pending"
	// StatusRunning means the execution loop is advancing through nodes.
	StatusRunning Status = "running"
	// StatusPaused means the instance is suspended awaiting a human decision.
	StatusPaused Status = "paused"
	// StatusCompleted means the instance reached the end node successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the instance failed terminally.
	StatusFailed Status = "failed"
	// StatusCancelled means the instance was cancelled by an operator.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Sentinel node names. NodeStart marks a freshly created instance whose
// entry point has not been resolved yet; NodeEnd is the terminal sink
// every definition implicitly routes to.
const (
	NodeStart = "start"
	NodeEnd   = "end"
)

// KeyHITLResponse is the data key under which a human review response is
// merged by Resume. Gate nodes check it before raising a review request
// so that loop re-entry after crash recovery never duplicates requests.
const KeyHITLResponse = "hitlResponse"

// HistoryEntry records one executed node and the data delta it produced.
// History is append-only; it never shrinks or reorders.
type HistoryEntry struct {
	Node      string         `json:"node"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// State is the persisted checkpoint of a single workflow instance. The
// store owns the canonical copy; the engine holds only a per-iteration
// working copy and reloads before each node execution.
type State struct {
	cascade.Entity

	ID          id.WorkflowID  `json:"id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	Type        string         `json:"type"`
	Status      Status         `json:"status"`
	CurrentNode string         `json:"current_node"`
	Data        map[string]any `json:"data"`
	History     []HistoryEntry `json:"history"`
	Error       string         `json:"error,omitempty"`
}

// Clone returns a deep-enough copy: the Data map and History slice are
// copied so callers can mutate the clone without racing the original.
// Nested values inside Data are shared.
func (s *State) Clone() *State {
	cp := *s
	cp.Data = make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	cp.History = make([]HistoryEntry, len(s.History))
	copy(cp.History, s.History)
	return &cp
}

// Apply merges a node's partial update into the state: Data keys are
// shallow-merged (new keys overwrite, unspecified keys persist), a
// history entry is appended, and a non-zero Status override is applied.
func (s *State) Apply(node string, u Update, at time.Time) {
	if s.Data == nil {
		s.Data = make(map[string]any, len(u.Data))
	}
	for k, v := range u.Data {
		s.Data[k] = v
	}
	s.History = append(s.History, HistoryEntry{
		Node:      node,
		Timestamp: at,
		Data:      u.Data,
	})
	if u.Status != "" {
		s.Status = u.Status
	}
	s.Touch()
}

// ──────────────────────────────────────────────────
// Data bag accessors
// ──────────────────────────────────────────────────
//
// Checkpoint data round-trips through JSON, so numbers come back as
// float64 and nested records as map[string]any. These accessors absorb
// that so node code stays readable.

// String returns the string value under key, or "" if absent or not a string.
func (s *State) String(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

// Float returns the numeric value under key, or 0 if absent.
func (s *State) Float(key string) float64 {
	switch v := s.Data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns the boolean value under key, or false if absent.
func (s *State) Bool(key string) bool {
	v, _ := s.Data[key].(bool)
	return v
}

// Map returns the nested record under key, or nil if absent.
func (s *State) Map(key string) map[string]any {
	v, _ := s.Data[key].(map[string]any)
	return v
}

// Slice returns the list value under key, or nil if absent.
func (s *State) Slice(key string) []any {
	v, _ := s.Data[key].([]any)
	return v
}

// Has reports whether key is present in the data bag.
func (s *State) Has(key string) bool {
	_, ok := s.Data[key]
	return ok
}

// HITLResponse returns the merged human review response, if any.
func (s *State) HITLResponse() (map[string]any, bool) {
	v, ok := s.Data[KeyHITLResponse].(map[string]any)
	return v, ok
}
