package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ymatsuda/rankwatch/app/evaluation"
)

// BatchEvaluateTask runs one global batch evaluation sweep. The optional
// running flag prevents a slow sweep from overlapping the next tick's; the
// engine's hour-gated due-check already makes an overlap mostly harmless,
// this just avoids burning the external API quota twice.
type BatchEvaluateTask struct {
	Task
	engine  *evaluation.Engine
	running *atomic.Bool
}

func NewBatchEvaluateTask(engine *evaluation.Engine, running *atomic.Bool) *BatchEvaluateTask {
	task := NewTask(TaskTypeBatchEvaluate, "all-users")
	// The next scheduled tick is the retry mechanism for a failed sweep.
	task.MaxRetries = 0

	return &BatchEvaluateTask{
		Task:    task,
		engine:  engine,
		running: running,
	}
}

func (t *BatchEvaluateTask) Execute(ctx context.Context) error {
	if t.running != nil {
		defer t.running.Store(false)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.engine.RunAllDueEvaluations(ctx)
	if err != nil {
		return fmt.Errorf("batch evaluation sweep failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "BatchEvaluate",
		"duration", t.GetDuration(),
		"users_processed", summary.UsersProcessed,
		"evaluations", summary.TotalEvaluations,
		"improved", summary.TotalImproved,
		"advanced", summary.TotalAdvanced,
		"skipped", summary.TotalSkipped,
		"errors", len(summary.Errors))

	return nil
}
