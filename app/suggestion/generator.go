package suggestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/evaluation"
)

// Generator produces a staged improvement suggestion for one evaluation and
// persists it onto the history row. Its success or failure is decoupled from
// the evaluation itself, which is already durably recorded when this runs.
type Generator interface {
	Generate(ctx context.Context, req evaluation.SuggestionRequest) error
}

// completer is the slice of ChatClient the generator needs.
type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMGenerator asks the LLM for a stage-appropriate suggestion and writes
// the summary back to the history entry.
type LLMGenerator struct {
	client      completer
	historyRepo database.HistoryRepository
}

func NewLLMGenerator(client completer, historyRepo database.HistoryRepository) *LLMGenerator {
	return &LLMGenerator{
		client:      client,
		historyRepo: historyRepo,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, req evaluation.SuggestionRequest) error {
	systemPrompt, userPrompt := BuildPrompts(req)

	summary, err := g.client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return fmt.Errorf("failed to generate suggestion: %w", err)
	}

	if err := g.historyRepo.SetSuggestionSummary(req.HistoryEntryID, summary); err != nil {
		return fmt.Errorf("failed to store suggestion summary: %w", err)
	}

	slog.Info("Suggestion generated",
		"user_id", req.UserID, "content_item_id", req.ContentItemID,
		"history_id", req.HistoryEntryID, "stage", req.StageUsed)

	return nil
}
