package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/workflow"
)

// run is the execution loop for one workflow instance. It claims the
// instance's execution lease, then repeatedly: reloads the checkpoint,
// executes the current node through the middleware chain, persists the
// result, and follows the definition's edges. It exits when the
// instance pauses, reaches a terminal status, or the lease is lost.
func (e *Engine) run(workflowID id.WorkflowID) {
	ctx := context.Background()

	held, err := e.store.AcquireLease(ctx, workflowID, e.workerID, e.cfg.LeaseTTL)
	if err != nil {
		e.logger.Error("lease acquire failed", "workflow_id", workflowID, "error", err)
		return
	}
	if !held {
		// Another loop is already advancing this instance; it will
		// observe any state change we raced against on its next reload.
		e.logger.Debug("lease held elsewhere", "workflow_id", workflowID)
		return
	}
	defer func() {
		if relErr := e.store.ReleaseLease(context.Background(), workflowID, e.workerID); relErr != nil {
			e.logger.Warn("lease release failed", "workflow_id", workflowID, "error", relErr)
		}
	}()

	for {
		s, err := e.store.GetState(ctx, workflowID)
		if err != nil {
			if errors.Is(err, cascade.ErrRunNotFound) {
				e.logger.Error("workflow vanished mid-run", "workflow_id", workflowID)
				return
			}
			e.logger.Error("checkpoint load failed", "workflow_id", workflowID, "error", err)
			return
		}

		// Externally applied pause or cancel wins over the loop.
		if s.Status == workflow.StatusPaused || s.Status.Terminal() {
			return
		}

		def, ok := e.registry.Get(s.Type)
		if !ok {
			e.fail(ctx, s, fmt.Errorf("workflow type %q: %w", s.Type, cascade.ErrDefinitionNotFound))
			return
		}

		current := s.CurrentNode
		if current == workflow.NodeStart {
			current = def.EntryPoint()
		}
		if current == workflow.NodeEnd {
			e.complete(ctx, s)
			return
		}

		node, ok := def.Node(current)
		if !ok {
			e.fail(ctx, s, fmt.Errorf("node %q in workflow type %q: %w", current, s.Type, cascade.ErrNodeNotFound))
			return
		}

		// The transition to running is persisted before the node
		// executes, so a concurrent status read never sees pending once
		// work has started.
		if s.Status == workflow.StatusPending {
			running := workflow.StatusRunning
			if err := e.store.UpdateState(ctx, s.ID, workflow.Patch{Status: &running}); err != nil {
				e.logger.Error("checkpoint save failed", "workflow_id", workflowID, "error", err)
				return
			}
			s.Status = running
		}

		started := time.Now()
		upd, err := e.chain(ctx, s, current, func(ctx context.Context) (workflow.Update, error) {
			return node.Execute(ctx, s.Clone())
		})
		if err != nil {
			e.hooks.EmitNodeFailed(ctx, s, current, err)
			e.fail(ctx, s, fmt.Errorf("node %q: %w", current, err))
			return
		}

		s.CurrentNode = current
		s.Apply(current, upd, time.Now().UTC())
		e.hooks.EmitNodeCompleted(ctx, s, current, time.Since(started))

		// A cancel applied while the node ran wins; drop this update
		// rather than overwrite the cancelled checkpoint.
		if e.cancelRequested(ctx, workflowID) {
			return
		}

		if s.Status == workflow.StatusPaused {
			if err := e.store.SaveState(ctx, s); err != nil {
				e.logger.Error("checkpoint save failed", "workflow_id", workflowID, "error", err)
				return
			}
			e.hooks.EmitWorkflowPaused(ctx, s)
			e.logger.Info("workflow paused",
				"workflow_id", workflowID,
				"node", current)
			return
		}

		next := def.Next(current, s)
		s.CurrentNode = next
		if next == workflow.NodeEnd {
			e.complete(ctx, s)
			return
		}

		if err := e.store.SaveState(ctx, s); err != nil {
			e.logger.Error("checkpoint save failed", "workflow_id", workflowID, "error", err)
			return
		}

		renewed, err := e.store.RenewLease(ctx, workflowID, e.workerID, e.cfg.LeaseTTL)
		if err != nil || !renewed {
			// Ownership moved; abandon the loop rather than double-run.
			e.logger.Warn("lease lost mid-run", "workflow_id", workflowID, "error", err)
			return
		}
	}
}

// cancelRequested reports whether the stored checkpoint was cancelled
// since the loop last reloaded it.
func (e *Engine) cancelRequested(ctx context.Context, workflowID id.WorkflowID) bool {
	cur, err := e.store.GetState(ctx, workflowID)
	return err == nil && cur.Status == workflow.StatusCancelled
}

// complete marks the instance completed and persists the final
// checkpoint.
func (e *Engine) complete(ctx context.Context, s *workflow.State) {
	s.Status = workflow.StatusCompleted
	s.CurrentNode = workflow.NodeEnd
	s.Touch()
	if err := e.store.SaveState(ctx, s); err != nil {
		e.logger.Error("checkpoint save failed", "workflow_id", s.ID, "error", err)
		return
	}
	e.hooks.EmitWorkflowCompleted(ctx, s, time.Since(s.CreatedAt))
	e.logger.Info("workflow completed",
		"workflow_id", s.ID,
		"workflow_type", s.Type,
		"elapsed", time.Since(s.CreatedAt))
}

// fail marks the instance failed, recording the error string on the
// checkpoint.
func (e *Engine) fail(ctx context.Context, s *workflow.State, runErr error) {
	failed := workflow.StatusFailed
	msg := runErr.Error()
	if err := e.store.UpdateState(ctx, s.ID, workflow.Patch{Status: &failed, Error: &msg}); err != nil {
		e.logger.Error("checkpoint save failed", "workflow_id", s.ID, "error", err)
	}
	s.Status = failed
	s.Error = msg
	e.hooks.EmitWorkflowFailed(ctx, s, runErr)
	e.logger.Error("workflow failed",
		"workflow_id", s.ID,
		"workflow_type", s.Type,
		"node", s.CurrentNode,
		"error", msg)
}
