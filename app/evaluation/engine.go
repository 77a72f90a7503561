package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ymatsuda/rankwatch/app/clock"
	"github.com/ymatsuda/rankwatch/app/database"
)

// User-visible error messages recorded on failed evaluation attempts.
// The dashboard shows these strings as-is.
const (
	msgImportFailed = "Google Search Consoleからのデータ取得に失敗しました"
	msgNoMetrics    = "評価対象期間の順位データが見つかりませんでした"
)

// Engine orchestrates periodic search-performance evaluations: due
// filtering, metrics refresh, outcome judgment, stage transition, history
// recording and suggestion dispatch. Entry points are the per-user sweep
// and the global batch sweep; both isolate failures per unit of work.
type Engine struct {
	configRepo  database.ConfigRepository
	historyRepo database.HistoryRepository
	metricsRepo database.MetricsRepository
	importer    MetricsImporter
	dispatcher  SuggestionDispatcher

	tzOffsetHours int
	concurrency   int

	// now is a field for testability; tests replace it to control the
	// evaluation date and hour.
	now func() time.Time
}

// NewEngine creates an evaluation engine. tzOffsetHours is the business
// timezone offset east of UTC; concurrency caps the per-sweep fan-out.
func NewEngine(configRepo database.ConfigRepository, historyRepo database.HistoryRepository,
	metricsRepo database.MetricsRepository, importer MetricsImporter,
	dispatcher SuggestionDispatcher, tzOffsetHours, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Engine{
		configRepo:    configRepo,
		historyRepo:   historyRepo,
		metricsRepo:   metricsRepo,
		importer:      importer,
		dispatcher:    dispatcher,
		tzOffsetHours: tzOffsetHours,
		concurrency:   concurrency,
		now:           time.Now,
	}
}

// SetSuggestionDispatcher wires the suggestion queue in after construction.
// The engine and the task scheduler reference each other, so one side has to
// be bound late; evaluations run before binding skip suggestion dispatch.
func (e *Engine) SetSuggestionDispatcher(dispatcher SuggestionDispatcher) {
	e.dispatcher = dispatcher
}

func (e *Engine) businessNow() time.Time {
	return clock.InBusinessZone(e.now(), e.tzOffsetHours)
}

// RunDueEvaluationsForUser evaluates a user's active configs. Without force,
// only configs due per the per-user check run; force evaluates
// unconditionally. An optional content item id scopes the sweep to one item.
func (e *Engine) RunDueEvaluationsForUser(ctx context.Context, userID string, opts Options) (*Summary, error) {
	configs, err := e.configRepo.ListActiveByUser(userID, opts.ContentItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation configs for user %s: %w", userID, err)
	}

	today := clock.Truncate(e.businessNow())

	if !opts.Force {
		due := configs[:0]
		for _, config := range configs {
			if DueForUser(config, today) {
				due = append(due, config)
			}
		}
		configs = due
	}

	slog.Debug("Running user evaluation sweep",
		"user_id", userID, "configs", len(configs), "force", opts.Force)

	summary := e.runEvaluations(ctx, configs, today)
	return summary, nil
}

// RunAllDueEvaluations is the cron entry point: it resolves the business
// time once, filters every active config with the hour-gated batch check,
// and sweeps each affected user. One user's failure is recorded and the
// batch moves on; their items never block other users.
func (e *Engine) RunAllDueEvaluations(ctx context.Context) (*BatchSummary, error) {
	configs, err := e.configRepo.ListAllActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load active evaluation configs: %w", err)
	}

	now := e.businessNow()
	today := clock.Truncate(now)
	hour := now.Hour()

	dueUsers := make(map[string]bool)
	dueCount := 0
	for _, config := range configs {
		if DueForBatch(config, today, hour) {
			dueUsers[config.UserID] = true
			dueCount++
		}
	}

	userIDs := make([]string, 0, len(dueUsers))
	for userID := range dueUsers {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	slog.Info("Starting batch evaluation sweep",
		"active_configs", len(configs), "due_configs", dueCount, "users", len(userIDs))

	batch := &BatchSummary{Errors: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, userID := range userIDs {
		g.Go(func() error {
			// The per-user sweep re-derives due rows with the coarser
			// per-user check, a superset of the batch check above, so a
			// config due here stays due there.
			summary, err := e.RunDueEvaluationsForUser(gctx, userID, Options{})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				slog.Error("User evaluation sweep failed", "user_id", userID, "error", err)
				batch.Errors = append(batch.Errors, fmt.Sprintf("user %s: %v", userID, err))
				return nil
			}

			batch.UsersProcessed++
			batch.TotalEvaluations += summary.Processed
			batch.TotalImproved += summary.Improved
			batch.TotalAdvanced += summary.Advanced
			batch.TotalSkipped += summary.SkippedNoMetrics + summary.SkippedImportFailed
			return nil
		})
	}

	g.Wait()
	sort.Strings(batch.Errors)

	slog.Info("Batch evaluation sweep finished",
		"users_processed", batch.UsersProcessed,
		"evaluations", batch.TotalEvaluations,
		"improved", batch.TotalImproved,
		"advanced", batch.TotalAdvanced,
		"skipped", batch.TotalSkipped,
		"errors", len(batch.Errors))

	return batch, nil
}

// runEvaluations fans the configs out over the worker limit and folds the
// tagged results into a summary. Each item's failure is absorbed here;
// nothing an individual evaluation does can abort its siblings.
func (e *Engine) runEvaluations(ctx context.Context, configs []database.EvaluationConfig, today time.Time) *Summary {
	summary := &Summary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, config := range configs {
		g.Go(func() error {
			result, err := e.evaluateItem(gctx, config, today)
			if err != nil {
				slog.Error("Evaluation failed unexpectedly",
					"user_id", config.UserID, "content_item_id", config.ContentItemID,
					"config_id", config.ID, "error", err)
				result = itemResult{tag: ResultSkippedImportFailed}
			}

			mu.Lock()
			defer mu.Unlock()

			switch result.tag {
			case ResultSuccess:
				summary.Processed++
				if result.outcome == database.OutcomeImproved {
					summary.Improved++
				} else {
					summary.Advanced++
				}
			case ResultSkippedNoMetrics:
				summary.SkippedNoMetrics++
			case ResultSkippedImportFailed:
				summary.SkippedImportFailed++
			}
			return nil
		})
	}

	g.Wait()
	return summary
}

// evaluateItem runs the single-item state machine: refresh metrics, read the
// latest position, judge the outcome, advance the registry and history in
// one transaction, and dispatch a staged suggestion on non-improvement.
// Import and no-metrics conditions are recorded as error history rows and
// returned as tags, not errors; only unanticipated failures return an error.
func (e *Engine) evaluateItem(ctx context.Context, config database.EvaluationConfig, today time.Time) (itemResult, error) {
	opts := ImportOptions{
		StartDate:  clock.AddDays(today, -config.CycleDays),
		EndDate:    today,
		SearchType: "web",
		MaxRows:    25000,
	}

	if err := e.importer.Import(ctx, config.UserID, opts); err != nil {
		slog.Warn("Metrics import failed",
			"user_id", config.UserID, "content_item_id", config.ContentItemID, "error", err)
		e.recordError(config, today, database.ErrorCodeImportFailed,
			fmt.Sprintf("%s: %v", msgImportFailed, err))
		return itemResult{tag: ResultSkippedImportFailed}, nil
	}

	metric, err := e.metricsRepo.LatestMetric(config.UserID, config.PropertyURI, config.ContentItemID)
	if err != nil {
		return itemResult{}, fmt.Errorf("failed to read latest metric: %w", err)
	}

	if metric == nil || metric.Position == nil || !isFinite(*metric.Position) {
		e.recordError(config, today, database.ErrorCodeNoMetrics, msgNoMetrics)
		return itemResult{tag: ResultSkippedNoMetrics}, nil
	}

	current := *metric.Position
	outcome := JudgeOutcome(config.LastSeenPosition, current)

	// The stage in effect before the transition selects this evaluation's
	// suggestion; the transitioned stage is what gets persisted.
	currentStage := config.CurrentSuggestionStage
	nextStage := NextStage(currentStage, outcome)

	historyID, err := e.configRepo.ApplyEvaluationResult(database.EvaluationResult{
		ConfigID:         config.ID,
		UserID:           config.UserID,
		ContentItemID:    config.ContentItemID,
		EvaluationDate:   today,
		PreviousPosition: config.LastSeenPosition,
		CurrentPosition:  current,
		Outcome:          outcome,
		NextStage:        nextStage,
	})
	if err != nil {
		return itemResult{}, fmt.Errorf("failed to persist evaluation result: %w", err)
	}

	slog.Info("Evaluation completed",
		"user_id", config.UserID, "content_item_id", config.ContentItemID,
		"outcome", outcome, "position", current, "stage", nextStage)

	if outcome != database.OutcomeImproved && e.dispatcher != nil {
		req := SuggestionRequest{
			UserID:           config.UserID,
			ContentItemID:    config.ContentItemID,
			ConfigID:         config.ID,
			HistoryEntryID:   historyID,
			Outcome:          outcome,
			CurrentPosition:  current,
			PreviousPosition: config.LastSeenPosition,
			StageUsed:        currentStage,
		}
		if err := e.dispatcher.Dispatch(req); err != nil {
			// The evaluation is already durably recorded; a failed dispatch
			// only costs the user this cycle's suggestion.
			slog.Error("Failed to dispatch suggestion generation",
				"user_id", config.UserID, "content_item_id", config.ContentItemID,
				"history_id", historyID, "error", err)
		}
	}

	return itemResult{tag: ResultSuccess, outcome: outcome}, nil
}

// recordError appends an error history row without touching the config.
// A failure to record is logged and swallowed: the skip tag still counts.
func (e *Engine) recordError(config database.EvaluationConfig, today time.Time, errorCode, errorMessage string) {
	if _, err := e.historyRepo.InsertError(config.UserID, config.ContentItemID, today, errorCode, errorMessage); err != nil {
		slog.Error("Failed to record evaluation error",
			"user_id", config.UserID, "content_item_id", config.ContentItemID,
			"error_code", errorCode, "error", err)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
