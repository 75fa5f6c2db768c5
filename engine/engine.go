package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/hook"
	"github.com/openfield/cascade/id"
	mw "github.com/openfield/cascade/middleware"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/throttle"
	"github.com/openfield/cascade/workflow"
)

// ErrClosed is returned by Start and Resume after Close has been called.
var ErrClosed = errors.New("engine: closed")

// waiter tracks loop completion for one workflow instance. The channel
// closes when the last active loop for the instance exits.
type waiter struct {
	ch chan struct{}
	n  int
}

// Engine launches and advances workflow instances.
type Engine struct {
	store    workflow.Store
	registry *workflow.Registry
	hooks    *hook.Registry
	throttle *throttle.Manager
	chain    mw.Middleware
	logger   *slog.Logger
	cfg      cascade.Config
	workerID id.WorkerID

	// Options collected before the chain is built.
	mws            []mw.Middleware
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.Mutex
	waiters map[string]*waiter
	wg      sync.WaitGroup
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets the engine's runtime configuration.
// Defaults to cascade.DefaultConfig().
func WithConfig(cfg cascade.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithHook registers a lifecycle hook with the engine.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) {
		e.hooks.Register(h)
	}
}

// WithMiddleware appends middleware to the engine's chain, inside the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) {
		e.mws = append(e.mws, m)
	}
}

// WithThrottle sets the admission manager consulted by Start.
// Without one, all starts are admitted.
func WithThrottle(m *throttle.Manager) Option {
	return func(e *Engine) {
		e.throttle = m
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the
// global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meterProvider = mp
	}
}

// New creates an Engine over the given store and workflow registry.
func New(store workflow.Store, registry *workflow.Registry, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, cascade.ErrNoStore
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: nil registry")
	}

	e := &Engine{
		store:    store,
		registry: registry,
		logger:   slog.Default(),
		cfg:      cascade.DefaultConfig(),
		workerID: id.NewWorkerID(),
		waiters:  make(map[string]*waiter),
	}
	e.hooks = hook.NewRegistry(e.logger)

	for _, opt := range opts {
		opt(e)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if e.tracerProvider != nil {
		tracer := e.tracerProvider.Tracer("github.com/openfield/cascade")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if e.meterProvider != nil {
		meter := e.meterProvider.Meter("github.com/openfield/cascade")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default stack: recover → tracing → metrics → logging → timeout.
	stack := []mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
		mw.Timeout(e.cfg.NodeTimeout),
	}
	stack = append(stack, e.mws...)
	e.chain = mw.Chain(stack...)

	return e, nil
}

// Hooks returns the engine's hook registry so wiring code can register
// hooks after construction and fan gate events into it.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// WorkerID returns the identity under which this engine claims
// execution leases.
func (e *Engine) WorkerID() id.WorkerID { return e.workerID }

// Start creates a new workflow instance of the given type and launches
// its execution loop. It returns the created checkpoint immediately;
// the loop advances in the background. Returns ErrTenantThrottled when
// the admission manager rejects the start.
func (e *Engine) Start(ctx context.Context, workflowType, tenantID string, input map[string]any) (*workflow.State, error) {
	if _, ok := e.registry.Get(workflowType); !ok {
		return nil, fmt.Errorf("start %q: %w", workflowType, cascade.ErrDefinitionNotFound)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.mu.Unlock()

	release := func() {}
	if e.throttle != nil {
		if !e.throttle.Acquire(workflowType, tenantID) {
			return nil, fmt.Errorf("start %q for tenant %q: %w", workflowType, tenantID, cascade.ErrTenantThrottled)
		}
		release = func() { e.throttle.Release(workflowType, tenantID) }
	}

	data := make(map[string]any, len(input))
	for k, v := range input {
		data[k] = v
	}

	s := &workflow.State{
		Entity:      cascade.NewEntity(),
		ID:          id.NewWorkflowID(),
		TenantID:    tenantID,
		Type:        workflowType,
		Status:      workflow.StatusPending,
		CurrentNode: workflow.NodeStart,
		Data:        data,
	}
	if err := e.store.CreateState(ctx, s); err != nil {
		release()
		return nil, fmt.Errorf("create state: %w", err)
	}

	e.hooks.EmitWorkflowStarted(ctx, s)
	e.logger.InfoContext(ctx, "workflow started",
		"workflow_id", s.ID,
		"workflow_type", workflowType,
		"tenant_id", tenantID)

	e.launch(s.ID, release)
	return s.Clone(), nil
}

// Resume wakes a paused workflow with a human response. The response is
// merged into the data bag under workflow.KeyHITLResponse and a fresh
// execution loop is launched from the checkpointed node. Returns
// ErrNotPaused if the instance is not paused.
func (e *Engine) Resume(ctx context.Context, workflowID id.WorkflowID, resp review.Response) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()

	s, err := e.store.GetState(ctx, workflowID)
	if err != nil {
		return err
	}
	if s.Status != workflow.StatusPaused {
		return fmt.Errorf("resume %s in status %q: %w", workflowID, s.Status, cascade.ErrNotPaused)
	}

	running := workflow.StatusRunning
	patch := workflow.Patch{
		Status: &running,
		Data:   map[string]any{workflow.KeyHITLResponse: resp.AsData()},
	}
	if err := e.store.UpdateState(ctx, workflowID, patch); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	s.Status = running
	s.Data[workflow.KeyHITLResponse] = resp.AsData()
	e.hooks.EmitWorkflowResumed(ctx, s)
	e.logger.InfoContext(ctx, "workflow resumed",
		"workflow_id", workflowID,
		"node", s.CurrentNode,
		"approved", resp.Approved)

	e.launch(workflowID, func() {})
	return nil
}

// Cancel marks a workflow cancelled. A loop mid-node observes the new
// status on its next reload and stops without executing further nodes.
// Returns ErrTerminal if the instance already reached a terminal status.
func (e *Engine) Cancel(ctx context.Context, workflowID id.WorkflowID) error {
	s, err := e.store.GetState(ctx, workflowID)
	if err != nil {
		return err
	}
	if s.Status.Terminal() {
		return fmt.Errorf("cancel %s in status %q: %w", workflowID, s.Status, cascade.ErrTerminal)
	}

	cancelled := workflow.StatusCancelled
	if err := e.store.UpdateState(ctx, workflowID, workflow.Patch{Status: &cancelled}); err != nil {
		return fmt.Errorf("update state: %w", err)
	}

	s.Status = cancelled
	e.hooks.EmitWorkflowCancelled(ctx, s)
	e.logger.InfoContext(ctx, "workflow cancelled", "workflow_id", workflowID)
	return nil
}

// Status returns the current checkpoint of a workflow instance.
func (e *Engine) Status(ctx context.Context, workflowID id.WorkflowID) (*workflow.State, error) {
	return e.store.GetState(ctx, workflowID)
}

// Recover relaunches execution loops for instances left in running or
// pending status, typically after a process crash. Paused instances are
// untouched; they wake only through Resume. Returns the number of loops
// launched.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	count := 0
	for _, status := range []workflow.Status{workflow.StatusRunning, workflow.StatusPending} {
		states, err := e.store.ListStatesByStatus(ctx, status, workflow.ListOpts{})
		if err != nil {
			return count, fmt.Errorf("list %s states: %w", status, err)
		}
		for _, s := range states {
			e.logger.InfoContext(ctx, "recovering workflow",
				"workflow_id", s.ID,
				"workflow_type", s.Type,
				"node", s.CurrentNode)
			e.launch(s.ID, func() {})
			count++
		}
	}
	return count, nil
}

// Wait returns a channel that closes when no execution loop is active
// for the given workflow. If none is active, the returned channel is
// already closed. Intended for tests and drain paths.
func (e *Engine) Wait(workflowID id.WorkflowID) <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if w, ok := e.waiters[workflowID.String()]; ok {
		return w.ch
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Close stops accepting new work and waits for active loops to drain,
// bounded by the context (callers typically pass a deadline derived
// from Config.ShutdownTimeout). Loops still running when the deadline
// expires keep their checkpoints; Recover picks them up on restart.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.hooks.EmitShutdown(ctx)
		return fmt.Errorf("engine close: %w", ctx.Err())
	}

	e.hooks.EmitShutdown(ctx)
	return nil
}

// launch starts a detached execution loop for the workflow and registers
// its completion waiter.
func (e *Engine) launch(workflowID id.WorkflowID, release func()) {
	key := workflowID.String()

	e.mu.Lock()
	w, ok := e.waiters[key]
	if !ok {
		w = &waiter{ch: make(chan struct{})}
		e.waiters[key] = w
	}
	w.n++
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer func() {
			release()
			e.mu.Lock()
			w.n--
			if w.n == 0 {
				close(w.ch)
				delete(e.waiters, key)
			}
			e.mu.Unlock()
			e.wg.Done()
		}()
		e.run(workflowID)
	}()
}
