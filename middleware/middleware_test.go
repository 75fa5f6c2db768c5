package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/middleware"
	"github.com/openfield/cascade/workflow"
)

func testState() *workflow.State {
	return &workflow.State{
		ID:       id.NewWorkflowID(),
		TenantID: "acme",
		Type:     "document_processing",
		Status:   workflow.StatusRunning,
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *workflow.State, _ string, next middleware.Handler) (workflow.Update, error) {
		order = append(order, "mw1-before")
		upd, err := next(ctx)
		order = append(order, "mw1-after")
		return upd, err
	}

	mw2 := func(ctx context.Context, _ *workflow.State, _ string, next middleware.Handler) (workflow.Update, error) {
		order = append(order, "mw2-before")
		upd, err := next(ctx)
		order = append(order, "mw2-after")
		return upd, err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) (workflow.Update, error) {
		order = append(order, "handler")
		return workflow.Update{}, nil
	}

	_, err := chain(context.Background(), testState(), "classify", handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) (workflow.Update, error) {
		called = true
		return workflow.Update{}, nil
	}

	_, err := chain(context.Background(), testState(), "classify", handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *workflow.State, _ string, next middleware.Handler) (workflow.Update, error) {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	_, err := chain(context.Background(), testState(), "classify", func(_ context.Context) (workflow.Update, error) {
		return workflow.Update{}, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestChain_PropagatesUpdate(t *testing.T) {
	chain := middleware.Chain(middleware.Recover(slog.Default()))
	upd, err := chain(context.Background(), testState(), "hitl_gate", func(_ context.Context) (workflow.Update, error) {
		return workflow.Pause(map[string]any{"pendingReview": true}), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Status != workflow.StatusPaused {
		t.Fatalf("status = %q, want paused", upd.Status)
	}
	if upd.Data["pendingReview"] != true {
		t.Fatalf("update data lost: %v", upd.Data)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	_, err := mw(context.Background(), testState(), "panicky", func(_ context.Context) (workflow.Update, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in node panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	called := false
	_, err := mw(context.Background(), testState(), "normal", func(_ context.Context) (workflow.Update, error) {
		called = true
		return workflow.Update{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Success(t *testing.T) {
	mw := middleware.Logging(slog.Default())

	called := false
	_, err := mw(context.Background(), testState(), "classify", func(_ context.Context) (workflow.Update, error) {
		called = true
		return workflow.Update{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	want := errors.New("fail")

	_, err := mw(context.Background(), testState(), "classify", func(_ context.Context) (workflow.Update, error) {
		return workflow.Update{}, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTimeout_CancelsContext(t *testing.T) {
	mw := middleware.Timeout(10 * time.Millisecond)

	_, err := mw(context.Background(), testState(), "slow", func(ctx context.Context) (workflow.Update, error) {
		select {
		case <-ctx.Done():
			return workflow.Update{}, ctx.Err()
		case <-time.After(time.Second):
			return workflow.Update{}, nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestTimeout_ZeroIsPassThrough(t *testing.T) {
	mw := middleware.Timeout(0)

	_, err := mw(context.Background(), testState(), "fast", func(ctx context.Context) (workflow.Update, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Fatal("zero timeout should not set a deadline")
		}
		return workflow.Update{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
