package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ymatsuda/rankwatch/app/evaluation"
	"github.com/ymatsuda/rankwatch/app/suggestion"
)

// GenerateSuggestionTask produces one staged improvement suggestion. It runs
// on the worker pool, decoupled from the evaluation that requested it, and
// retries with backoff on failure.
type GenerateSuggestionTask struct {
	Task
	generator suggestion.Generator
	request   evaluation.SuggestionRequest
}

func NewGenerateSuggestionTask(generator suggestion.Generator, request evaluation.SuggestionRequest) *GenerateSuggestionTask {
	return &GenerateSuggestionTask{
		Task:      NewTask(TaskTypeGenerateSuggestion, request.UserID),
		generator: generator,
		request:   request,
	}
}

func (t *GenerateSuggestionTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.generator.Generate(ctx, t.request); err != nil {
		return fmt.Errorf("failed to generate suggestion for history %s: %w", t.request.HistoryEntryID, err)
	}

	slog.Info("Task completed",
		"type", "GenerateSuggestion",
		"user_id", t.request.UserID,
		"content_item_id", t.request.ContentItemID,
		"stage", t.request.StageUsed,
		"duration", t.GetDuration())

	return nil
}

// Dispatcher adapts the task queue to the engine's fire-and-forget
// suggestion contract: enqueue and return, generation happens on a worker.
type Dispatcher struct {
	scheduler TaskSchedulerInterface
	generator suggestion.Generator
}

func NewDispatcher(scheduler TaskSchedulerInterface, generator suggestion.Generator) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		generator: generator,
	}
}

func (d *Dispatcher) Dispatch(req evaluation.SuggestionRequest) error {
	return d.scheduler.EnqueueTask(NewGenerateSuggestionTask(d.generator, req))
}
