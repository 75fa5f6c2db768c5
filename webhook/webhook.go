package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openfield/cascade/hook"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// Compile-time interface checks.
var (
	_ hook.Hook              = (*Hook)(nil)
	_ hook.WorkflowStarted   = (*Hook)(nil)
	_ hook.WorkflowPaused    = (*Hook)(nil)
	_ hook.WorkflowResumed   = (*Hook)(nil)
	_ hook.WorkflowCompleted = (*Hook)(nil)
	_ hook.WorkflowFailed    = (*Hook)(nil)
	_ hook.WorkflowCancelled = (*Hook)(nil)
	_ hook.ReviewRaised      = (*Hook)(nil)
)

// Event names carried in the envelope and the X-Cascade-Event header.
const (
	EventWorkflowStarted   = "workflow.started"
	EventWorkflowPaused    = "workflow.paused"
	EventWorkflowResumed   = "workflow.resumed"
	EventWorkflowCompleted = "workflow.completed"
	EventWorkflowFailed    = "workflow.failed"
	EventWorkflowCancelled = "workflow.cancelled"
	EventReviewRaised      = "review.raised"
)

// Envelope is the JSON body of every delivery.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Payload   any       `json:"payload"`
}

// workflowPayload is the payload for workflow lifecycle events.
type workflowPayload struct {
	WorkflowID  string `json:"workflow_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	CurrentNode string `json:"current_node"`
	Error       string `json:"error,omitempty"`
	ElapsedMs   int64  `json:"elapsed_ms,omitempty"`
}

// Option configures a Hook.
type Option func(*Hook)

// WithEvents restricts delivery to the listed events. By default all
// events are delivered.
func WithEvents(events ...string) Option {
	return func(h *Hook) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithHeader adds a header to every delivery, e.g. an Authorization token.
func WithHeader(key, value string) Option {
	return func(h *Hook) { h.headers[key] = value }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Hook) { h.http = hc }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hook) { h.logger = l }
}

// Hook delivers lifecycle events to a webhook endpoint.
type Hook struct {
	url     string
	http    *http.Client
	headers map[string]string
	enabled map[string]bool // nil = all enabled
	logger  *slog.Logger
}

// New creates a Hook that POSTs events to the given URL.
func New(url string, opts ...Option) *Hook {
	h := &Hook{
		url:     url,
		http:    &http.Client{Timeout: 10 * time.Second},
		headers: make(map[string]string),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements hook.Hook.
func (h *Hook) Name() string { return "webhook" }

// ── Workflow lifecycle hooks ────────────────────────

func (h *Hook) OnWorkflowStarted(ctx context.Context, s *workflow.State) error {
	return h.send(ctx, EventWorkflowStarted, s.TenantID, statePayload(s, 0))
}

func (h *Hook) OnWorkflowPaused(ctx context.Context, s *workflow.State) error {
	return h.send(ctx, EventWorkflowPaused, s.TenantID, statePayload(s, 0))
}

func (h *Hook) OnWorkflowResumed(ctx context.Context, s *workflow.State) error {
	return h.send(ctx, EventWorkflowResumed, s.TenantID, statePayload(s, 0))
}

func (h *Hook) OnWorkflowCompleted(ctx context.Context, s *workflow.State, elapsed time.Duration) error {
	return h.send(ctx, EventWorkflowCompleted, s.TenantID, statePayload(s, elapsed))
}

func (h *Hook) OnWorkflowFailed(ctx context.Context, s *workflow.State, runErr error) error {
	p := statePayload(s, 0)
	p.Error = runErr.Error()
	return h.send(ctx, EventWorkflowFailed, s.TenantID, p)
}

func (h *Hook) OnWorkflowCancelled(ctx context.Context, s *workflow.State) error {
	return h.send(ctx, EventWorkflowCancelled, s.TenantID, statePayload(s, 0))
}

// ── Review lifecycle hooks ──────────────────────────

func (h *Hook) OnReviewRaised(ctx context.Context, req *review.Request) error {
	return h.send(ctx, EventReviewRaised, req.TenantID, req)
}

// ── Internal helpers ────────────────────────────────

func statePayload(s *workflow.State, elapsed time.Duration) *workflowPayload {
	return &workflowPayload{
		WorkflowID:  s.ID.String(),
		Type:        s.Type,
		Status:      string(s.Status),
		CurrentNode: s.CurrentNode,
		ElapsedMs:   elapsed.Milliseconds(),
	}
}

// send delivers one event if it is enabled. Delivery failures are logged
// and swallowed.
func (h *Hook) send(ctx context.Context, event, tenantID string, payload any) error {
	if h.enabled != nil && !h.enabled[event] {
		return nil
	}

	body, err := json.Marshal(Envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("cascade/webhook: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cascade/webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cascade-Event", event)
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		h.logger.Warn("webhook delivery failed",
			"event", event,
			"url", h.url,
			"error", err,
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn("webhook endpoint rejected delivery",
			"event", event,
			"url", h.url,
			"status", resp.StatusCode,
		)
	}
	return nil
}
