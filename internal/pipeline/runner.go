package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Runner executes registered stages against a State.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRunner creates a runner over registry.
func NewRunner(registry *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, logger: logger}
}

// Run executes the named stages (all stages when none are named) in
// dependency order. A fatal error stops the run and is returned unchanged;
// non-fatal errors are appended to st.Warnings and the run continues.
func (r *Runner) Run(ctx context.Context, st *State, names ...string) error {
	plan, err := r.registry.Plan(names...)
	if err != nil {
		return fmt.Errorf("failed to plan run: %w", err)
	}
	if st.RunID == "" {
		st.RunID = uuid.New().String()
	}
	if st.StageTimes == nil {
		st.StageTimes = make(map[string]time.Duration)
	}

	logger := r.logger.With("run_id", st.RunID)
	runStart := time.Now()
	logger.Info("run started", "stages", len(plan), "source", st.SourcePath)

	for _, stage := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		logger.Info("stage started", "stage", stage.Name())
		err := stage.Run(ctx, st)
		st.StageTimes[stage.Name()] = time.Since(start)

		if err != nil {
			if IsFatal(err) {
				logger.Error("stage failed", "stage", stage.Name(), "error", err, "duration", time.Since(start))
				return err
			}
			logger.Warn("stage completed with errors", "stage", stage.Name(), "error", err, "duration", time.Since(start))
			st.Warnings = append(st.Warnings, err)
			continue
		}
		logger.Info("stage completed", "stage", stage.Name(), "duration", time.Since(start))
	}

	logger.Info("run completed",
		"duration", time.Since(runStart),
		"records", len(st.Records),
		"warnings", len(st.Warnings),
	)
	return nil
}
