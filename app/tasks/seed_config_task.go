package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ymatsuda/rankwatch/app/clock"
	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/seed"
)

// SeedConfigTask registers one seed file's content items for tracking.
// Already-registered items are skipped, so re-running at every startup is
// safe.
type SeedConfigTask struct {
	Task
	SeedConfig *seed.Config
	configRepo database.ConfigRepository
}

func NewSeedConfigTask(seedConfig *seed.Config, configRepo database.ConfigRepository) *SeedConfigTask {
	return &SeedConfigTask{
		Task:       NewTask(TaskTypeSeedConfig, seedConfig.UserID),
		SeedConfig: seedConfig,
		configRepo: configRepo,
	}
}

func (t *SeedConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	registered := 0
	skipped := 0

	for _, item := range t.SeedConfig.Items {
		baseDate, err := clock.ParseDate(item.BaseEvaluationDate)
		if err != nil {
			return fmt.Errorf("invalid base date for %s: %w", item.ContentItemID, err)
		}

		_, err = t.configRepo.Create(database.EvaluationConfig{
			UserID:             t.SeedConfig.UserID,
			ContentItemID:      item.ContentItemID,
			PropertyURI:        t.SeedConfig.PropertyURI,
			BaseEvaluationDate: baseDate,
			CycleDays:          item.CycleDays,
			EvaluationHour:     item.EvaluationHour,
		})
		if errors.Is(err, database.ErrDuplicateConfig) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to register seed item %s: %w", item.ContentItemID, err)
		}
		registered++
	}

	slog.Info("Task completed",
		"type", "SeedConfig",
		"user_id", t.SeedConfig.UserID,
		"duration", t.GetDuration(),
		"registered", registered,
		"skipped", skipped)

	return nil
}
