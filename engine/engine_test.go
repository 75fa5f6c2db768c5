package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/engine"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/store/memory"
	"github.com/openfield/cascade/throttle"
	"github.com/openfield/cascade/workflow"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, reg *workflow.Registry, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	opts = append([]engine.Option{engine.WithLogger(testLogger())}, opts...)
	e, err := engine.New(s, reg, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e, s
}

// step returns a node that merges the given data.
func step(name string, data map[string]any) workflow.Node {
	return workflow.NewNode(name, func(_ context.Context, _ *workflow.State) (workflow.Update, error) {
		return workflow.Update{Data: data}, nil
	})
}

func waitDone(t *testing.T, e *engine.Engine, wfID id.WorkflowID) {
	t.Helper()
	select {
	case <-e.Wait(wfID):
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for execution loop")
	}
}

func TestStartRunsToCompletion(t *testing.T) {
	def := workflow.MustDefinition("two-step", "first",
		[]workflow.Node{
			step("first", map[string]any{"a": 1}),
			step("second", map[string]any{"b": 2}),
		},
		[]workflow.Edge{
			workflow.Static("first", "second"),
			workflow.Static("second", workflow.NodeEnd),
		},
	)
	e, store := newTestEngine(t, workflow.MustRegistry(def))

	s, err := e.Start(context.Background(), "two-step", "acme", map[string]any{"input": "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Status != workflow.StatusPending {
		t.Fatalf("initial status = %q, want pending", s.Status)
	}
	if s.CurrentNode != workflow.NodeStart {
		t.Fatalf("initial node = %q, want start", s.CurrentNode)
	}

	waitDone(t, e, s.ID)

	got, err := store.GetState(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %s)", got.Status, got.Error)
	}
	if got.CurrentNode != workflow.NodeEnd {
		t.Fatalf("node = %q, want end", got.CurrentNode)
	}
	// Input survives and node outputs are merged.
	if got.Data["input"] != "x" || got.Float("a") != 1 || got.Float("b") != 2 {
		t.Fatalf("data = %v", got.Data)
	}
	// History records both nodes in order.
	if len(got.History) != 2 || got.History[0].Node != "first" || got.History[1].Node != "second" {
		t.Fatalf("history = %v", got.History)
	}
}

func TestRunningPersistsBeforeFirstNode(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	slow := workflow.NewNode("slow", func(_ context.Context, _ *workflow.State) (workflow.Update, error) {
		close(entered)
		<-release
		return workflow.Update{}, nil
	})
	def := workflow.MustDefinition("slow-start", "slow", []workflow.Node{slow}, nil)
	e, store := newTestEngine(t, workflow.MustRegistry(def))
	ctx := context.Background()

	s, err := e.Start(ctx, "slow-start", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first node never started")
	}

	// The pending→running transition lands in the store before the
	// first node executes, so status reads never show pending once work
	// has started.
	got, err := store.GetState(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got.Status != workflow.StatusRunning {
		t.Fatalf("status = %q while first node executes, want running", got.Status)
	}

	close(release)
	waitDone(t, e, s.ID)

	got, _ = store.GetState(ctx, s.ID)
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %s)", got.Status, got.Error)
	}
}

func TestStartUnknownType(t *testing.T) {
	e, _ := newTestEngine(t, workflow.MustRegistry())

	_, err := e.Start(context.Background(), "nope", "", nil)
	if !errors.Is(err, cascade.ErrDefinitionNotFound) {
		t.Fatalf("err = %v, want ErrDefinitionNotFound", err)
	}
}

func TestConditionalRouting(t *testing.T) {
	def := workflow.MustDefinition("branchy", "decide",
		[]workflow.Node{
			step("decide", map[string]any{"score": 80.0}),
			step("high", map[string]any{"path": "high"}),
			step("low", map[string]any{"path": "low"}),
		},
		[]workflow.Edge{
			workflow.Conditional("decide", func(s *workflow.State) string {
				if s.Float("score") >= 70 {
					return "high"
				}
				return "low"
			}),
			workflow.Static("high", workflow.NodeEnd),
			workflow.Static("low", workflow.NodeEnd),
		},
	)
	e, store := newTestEngine(t, workflow.MustRegistry(def))

	s, err := e.Start(context.Background(), "branchy", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	got, _ := store.GetState(context.Background(), s.ID)
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q (error: %s)", got.Status, got.Error)
	}
	if got.Data["path"] != "high" {
		t.Fatalf("took wrong branch: %v", got.Data)
	}
	// The low node never ran.
	for _, h := range got.History {
		if h.Node == "low" {
			t.Fatalf("low branch executed: %v", got.History)
		}
	}
}

// gateDef builds a single-gate workflow whose gate pauses until a human
// response appears in the data bag, counting executions.
func gateDef(execs *atomic.Int64) *workflow.Definition {
	gate := workflow.NewNode("approval_gate", func(_ context.Context, s *workflow.State) (workflow.Update, error) {
		execs.Add(1)
		resp, ok := s.HITLResponse()
		if !ok {
			return workflow.Pause(map[string]any{"pendingReview": true}), nil
		}
		approved, _ := resp["approved"].(bool)
		return workflow.Update{Data: map[string]any{"approved": approved, "pendingReview": false}}, nil
	})
	return workflow.MustDefinition("gated", "approval_gate",
		[]workflow.Node{gate},
		[]workflow.Edge{workflow.Static("approval_gate", workflow.NodeEnd)},
	)
}

func TestPauseAndResume(t *testing.T) {
	var execs atomic.Int64
	e, store := newTestEngine(t, workflow.MustRegistry(gateDef(&execs)))
	ctx := context.Background()

	s, err := e.Start(ctx, "gated", "acme", map[string]any{"documentId": "doc-9"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	paused, _ := store.GetState(ctx, s.ID)
	if paused.Status != workflow.StatusPaused {
		t.Fatalf("status = %q, want paused (error: %s)", paused.Status, paused.Error)
	}
	if paused.CurrentNode != "approval_gate" {
		t.Fatalf("paused at %q, want approval_gate", paused.CurrentNode)
	}
	if !paused.Bool("pendingReview") {
		t.Fatalf("gate data not checkpointed: %v", paused.Data)
	}

	if err := e.Resume(ctx, s.ID, review.Response{Approved: true, ResolvedBy: "lead"}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitDone(t, e, s.ID)

	done, _ := store.GetState(ctx, s.ID)
	if done.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %s)", done.Status, done.Error)
	}
	if !done.Bool("approved") {
		t.Fatalf("approval not recorded: %v", done.Data)
	}
	resp, ok := done.HITLResponse()
	if !ok || resp["resolvedBy"] != "lead" {
		t.Fatalf("hitl response not merged: %v", done.Data)
	}
	// Gate ran exactly twice: once to pause, once to pass through.
	if got := execs.Load(); got != 2 {
		t.Fatalf("gate executions = %d, want 2", got)
	}
}

func TestResumeNotPaused(t *testing.T) {
	def := workflow.MustDefinition("quick", "only",
		[]workflow.Node{step("only", nil)},
		nil,
	)
	e, _ := newTestEngine(t, workflow.MustRegistry(def))
	ctx := context.Background()

	s, err := e.Start(ctx, "quick", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	err = e.Resume(ctx, s.ID, review.Response{Approved: true})
	if !errors.Is(err, cascade.ErrNotPaused) {
		t.Fatalf("err = %v, want ErrNotPaused", err)
	}
}

func TestResumeUnknownWorkflow(t *testing.T) {
	e, _ := newTestEngine(t, workflow.MustRegistry())
	err := e.Resume(context.Background(), id.NewWorkflowID(), review.Response{})
	if !errors.Is(err, cascade.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestNodeErrorFailsWorkflow(t *testing.T) {
	boom := workflow.NewNode("boom", func(_ context.Context, _ *workflow.State) (workflow.Update, error) {
		return workflow.Update{}, errors.New("collaborator unavailable")
	})
	def := workflow.MustDefinition("failing", "boom", []workflow.Node{boom}, nil)
	e, store := newTestEngine(t, workflow.MustRegistry(def))

	s, err := e.Start(context.Background(), "failing", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	got, _ := store.GetState(context.Background(), s.ID)
	if got.Status != workflow.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.Error == "" {
		t.Fatal("error string not recorded")
	}
}

func TestPanicFailsWorkflow(t *testing.T) {
	panicky := workflow.NewNode("panicky", func(_ context.Context, _ *workflow.State) (workflow.Update, error) {
		panic("nil map write")
	})
	def := workflow.MustDefinition("panics", "panicky", []workflow.Node{panicky}, nil)
	e, store := newTestEngine(t, workflow.MustRegistry(def))

	s, err := e.Start(context.Background(), "panics", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	got, _ := store.GetState(context.Background(), s.ID)
	if got.Status != workflow.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
}

func TestCancelPausedWorkflow(t *testing.T) {
	var execs atomic.Int64
	e, store := newTestEngine(t, workflow.MustRegistry(gateDef(&execs)))
	ctx := context.Background()

	s, err := e.Start(ctx, "gated", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	if err := e.Cancel(ctx, s.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, _ := store.GetState(ctx, s.ID)
	if got.Status != workflow.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}

	// A cancelled instance cannot be resumed.
	if err := e.Resume(ctx, s.ID, review.Response{Approved: true}); !errors.Is(err, cascade.ErrNotPaused) {
		t.Fatalf("Resume err = %v, want ErrNotPaused", err)
	}

	// Cancelling a terminal instance fails.
	if err := e.Cancel(ctx, s.ID); !errors.Is(err, cascade.ErrTerminal) {
		t.Fatalf("second Cancel err = %v, want ErrTerminal", err)
	}
}

func TestThrottleRejectsStart(t *testing.T) {
	var execs atomic.Int64
	m := throttle.NewManager(throttle.Config{Type: "gated", MaxConcurrency: 1})
	e, _ := newTestEngine(t, workflow.MustRegistry(gateDef(&execs)), engine.WithThrottle(m))
	ctx := context.Background()

	// First instance pauses at the gate but keeps its admission slot
	// until the loop exits; wait for the pause so timing is stable.
	s1, err := e.Start(ctx, "gated", "acme", nil)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	// The slot is released when the first loop pauses. Until then a
	// second start is rejected.
	_, err = e.Start(ctx, "gated", "acme", nil)
	if err != nil && !errors.Is(err, cascade.ErrTenantThrottled) {
		t.Fatalf("second Start err = %v, want ErrTenantThrottled or nil", err)
	}

	waitDone(t, e, s1.ID)

	// After the first loop parks, a new start is admitted.
	s3, err := e.Start(ctx, "gated", "acme", nil)
	if err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	waitDone(t, e, s3.ID)
}

func TestRecoverRelaunchesInFlight(t *testing.T) {
	def := workflow.MustDefinition("two-step", "first",
		[]workflow.Node{
			step("first", map[string]any{"a": 1}),
			step("second", map[string]any{"b": 2}),
		},
		[]workflow.Edge{
			workflow.Static("first", "second"),
			workflow.Static("second", workflow.NodeEnd),
		},
	)
	e, store := newTestEngine(t, workflow.MustRegistry(def))
	ctx := context.Background()

	// Simulate a crash: a checkpoint parked mid-graph in running status
	// with no loop attached.
	crashed := &workflow.State{
		Entity:      cascade.NewEntity(),
		ID:          id.NewWorkflowID(),
		Type:        "two-step",
		Status:      workflow.StatusRunning,
		CurrentNode: "second",
		Data:        map[string]any{"a": float64(1)},
	}
	if err := store.CreateState(ctx, crashed); err != nil {
		t.Fatalf("CreateState: %v", err)
	}

	n, err := e.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d loops, want 1", n)
	}
	waitDone(t, e, crashed.ID)

	got, _ := store.GetState(ctx, crashed.ID)
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %s)", got.Status, got.Error)
	}
	// Only the remaining node ran.
	if len(got.History) != 1 || got.History[0].Node != "second" {
		t.Fatalf("history = %v", got.History)
	}
}

func TestRecoverSkipsPaused(t *testing.T) {
	var execs atomic.Int64
	e, store := newTestEngine(t, workflow.MustRegistry(gateDef(&execs)))
	ctx := context.Background()

	parked := &workflow.State{
		Entity:      cascade.NewEntity(),
		ID:          id.NewWorkflowID(),
		Type:        "gated",
		Status:      workflow.StatusPaused,
		CurrentNode: "approval_gate",
		Data:        map[string]any{"pendingReview": true},
	}
	if err := store.CreateState(ctx, parked); err != nil {
		t.Fatalf("CreateState: %v", err)
	}

	n, err := e.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 0 {
		t.Fatalf("recovered %d loops, want 0", n)
	}
	got, _ := store.GetState(ctx, parked.ID)
	if got.Status != workflow.StatusPaused {
		t.Fatalf("paused instance disturbed: %q", got.Status)
	}
	if execs.Load() != 0 {
		t.Fatal("gate executed during recovery of a paused instance")
	}
}

func TestLeaseBlocksSecondLoop(t *testing.T) {
	def := workflow.MustDefinition("quick", "only",
		[]workflow.Node{step("only", map[string]any{"ran": true})},
		nil,
	)
	e, store := newTestEngine(t, workflow.MustRegistry(def))
	ctx := context.Background()

	// Park a pending checkpoint whose lease is held by a foreign worker.
	s := &workflow.State{
		Entity:      cascade.NewEntity(),
		ID:          id.NewWorkflowID(),
		Type:        "quick",
		Status:      workflow.StatusPending,
		CurrentNode: workflow.NodeStart,
		Data:        map[string]any{},
	}
	if err := store.CreateState(ctx, s); err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	foreign := id.NewWorkerID()
	if ok, _ := store.AcquireLease(ctx, s.ID, foreign, time.Minute); !ok {
		t.Fatal("foreign lease acquire should succeed")
	}

	// Recovery launches a loop, but it must bail without advancing.
	if _, err := e.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	waitDone(t, e, s.ID)

	got, _ := store.GetState(ctx, s.ID)
	if got.Status != workflow.StatusPending || got.Has("ran") {
		t.Fatalf("loop advanced despite foreign lease: status=%q data=%v", got.Status, got.Data)
	}

	// Once the lease frees, recovery completes the instance.
	if err := store.ReleaseLease(ctx, s.ID, foreign); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
	if _, err := e.Recover(ctx); err != nil {
		t.Fatalf("second Recover: %v", err)
	}
	waitDone(t, e, s.ID)

	got, _ = store.GetState(ctx, s.ID)
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %s)", got.Status, got.Error)
	}
}

// recordingHook captures lifecycle events in order.
type recordingHook struct {
	events chan string
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) OnWorkflowStarted(_ context.Context, _ *workflow.State) error {
	h.events <- "started"
	return nil
}

func (h *recordingHook) OnWorkflowPaused(_ context.Context, _ *workflow.State) error {
	h.events <- "paused"
	return nil
}

func (h *recordingHook) OnWorkflowResumed(_ context.Context, _ *workflow.State) error {
	h.events <- "resumed"
	return nil
}

func (h *recordingHook) OnWorkflowCompleted(_ context.Context, _ *workflow.State, _ time.Duration) error {
	h.events <- "completed"
	return nil
}

func TestHooksFireThroughLifecycle(t *testing.T) {
	var execs atomic.Int64
	h := &recordingHook{events: make(chan string, 16)}
	e, _ := newTestEngine(t, workflow.MustRegistry(gateDef(&execs)), engine.WithHook(h))
	ctx := context.Background()

	s, err := e.Start(ctx, "gated", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)
	if err := e.Resume(ctx, s.ID, review.Response{Approved: true}); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitDone(t, e, s.ID)

	want := []string{"started", "paused", "resumed", "completed"}
	for _, expected := range want {
		select {
		case got := <-h.events:
			if got != expected {
				t.Fatalf("event = %q, want %q", got, expected)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q event", expected)
		}
	}
}

func TestCloseRejectsNewWork(t *testing.T) {
	def := workflow.MustDefinition("quick", "only",
		[]workflow.Node{step("only", nil)},
		nil,
	)
	e, _ := newTestEngine(t, workflow.MustRegistry(def))
	ctx := context.Background()

	s, err := e.Start(ctx, "quick", "", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, e, s.ID)

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := e.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := e.Start(ctx, "quick", "", nil); !errors.Is(err, engine.ErrClosed) {
		t.Fatalf("Start after Close err = %v, want ErrClosed", err)
	}
	if err := e.Resume(ctx, s.ID, review.Response{}); !errors.Is(err, engine.ErrClosed) {
		t.Fatalf("Resume after Close err = %v, want ErrClosed", err)
	}
}
