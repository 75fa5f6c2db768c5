package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/openfield/cascade/workflow"
)

// Logging returns middleware that logs node start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, s *workflow.State, node string, next Handler) (workflow.Update, error) {
		logger.Info("node started",
			slog.String("workflow_id", s.ID.String()),
			slog.String("workflow_type", s.Type),
			slog.String("node", node),
		)

		start := time.Now()
		upd, err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Error("node failed",
				slog.String("workflow_id", s.ID.String()),
				slog.String("node", node),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case upd.Status == workflow.StatusPaused:
			logger.Info("node paused workflow",
				slog.String("workflow_id", s.ID.String()),
				slog.String("node", node),
				slog.Duration("elapsed", elapsed),
			)
		default:
			logger.Info("node completed",
				slog.String("workflow_id", s.ID.String()),
				slog.String("node", node),
				slog.Duration("elapsed", elapsed),
			)
		}

		return upd, err
	}
}
