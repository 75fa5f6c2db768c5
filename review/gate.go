package review

import (
	"context"
	"log/slog"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/workflow"
)

// Raise describes a review request a gate node wants to open.
type Raise struct {
	RequestType string
	Urgency     Urgency
	Description string
	Context     map[string]any
}

// Gate opens review requests on behalf of interrupt nodes. A node that
// needs human input calls Open and then returns workflow.Pause so the
// run checkpoints before the engine parks it.
type Gate struct {
	store  Store
	logger *slog.Logger
	notify func(ctx context.Context, req *Request)
}

// NewGate returns a gate backed by the given request store.
func NewGate(store Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger}
}

// Notify sets a callback invoked after each request is created. Wiring
// code uses this to fan the event out to lifecycle hooks; the callback
// must not block.
func (g *Gate) Notify(fn func(ctx context.Context, req *Request)) {
	g.notify = fn
}

// Open creates a pending review request tied to the given workflow
// state and returns it. The caller is responsible for returning a
// paused update from its node so the engine halts the run.
//
// Open does not write the paused status itself: the node's paused
// update travels through the same checkpoint write as the rest of its
// output, so the pause and the node's data land atomically and the
// loop parks before resolving another edge. Between CreateRequest and
// that write the checkpoint still reads running; a resolution attempt
// in that window fails with ErrNotPaused until the pause lands.
func (g *Gate) Open(ctx context.Context, s *workflow.State, r Raise) (*Request, error) {
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
	req := &Request{
		Entity:      cascade.NewEntity(),
		ID:          id.NewReviewID(),
		TenantID:    s.TenantID,
		WorkflowID:  s.ID,
		RequestType: r.RequestType,
		Urgency:     r.Urgency,
		Status:      RequestPending,
		Description: r.Description,
		Context:     r.Context,
	}
	if err := g.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	if g.notify != nil {
		g.notify(ctx, req)
	}
	g.logger.InfoContext(ctx, "review request opened",
		"review_id", req.ID,
		"workflow_id", s.ID,
		"request_type", r.RequestType,
		"urgency", r.Urgency)
	return req, nil
}

// UrgencyForConfidence maps a classification confidence score to the
// urgency of the resulting review: confident results still get a look,
// shaky ones jump the queue.
func UrgencyForConfidence(confidence float64) Urgency {
	if confidence >= 0.7 {
		return UrgencyMedium
	}
	return UrgencyHigh
}
