package evaluation

import (
	"context"
	"time"
)

// MaxSuggestionStage caps the escalation ladder. Repeated non-improvement
// keeps re-triggering stage-4 suggestions rather than erroring.
const MaxSuggestionStage = 4

// Item evaluation result tags.
const (
	ResultSuccess             = "success"
	ResultSkippedImportFailed = "skipped_import_failed"
	ResultSkippedNoMetrics    = "skipped_no_metrics"
)

// ImportOptions is the inclusive date-range window passed to the metrics
// importer before each evaluation.
type ImportOptions struct {
	StartDate  time.Time
	EndDate    time.Time
	SearchType string
	MaxRows    int
}

// MetricsImporter refreshes a user's ranking metrics from the external
// search-analytics source. A returned error is classified as import_failed.
type MetricsImporter interface {
	Import(ctx context.Context, userID string, opts ImportOptions) error
}

// SuggestionRequest carries the context for one staged improvement
// suggestion. StageUsed is the stage in effect before the evaluation's
// transition, so the suggestion text matches the stage the user was on.
type SuggestionRequest struct {
	UserID           string
	ContentItemID    string
	ConfigID         string
	HistoryEntryID   string
	Outcome          string
	CurrentPosition  float64
	PreviousPosition *float64
	StageUsed        int
}

// SuggestionDispatcher hands a suggestion request off for asynchronous
// generation. Dispatch failures must never fail the evaluation; the engine
// logs and moves on.
type SuggestionDispatcher interface {
	Dispatch(req SuggestionRequest) error
}

// Options controls a per-user sweep. Force bypasses due-filtering;
// ContentItemID scopes the sweep to one registered item.
type Options struct {
	Force         bool
	ContentItemID string
}

// Summary aggregates one per-user sweep.
type Summary struct {
	Processed           int `json:"processed"`
	Improved            int `json:"improved"`
	Advanced            int `json:"advanced"`
	SkippedNoMetrics    int `json:"skipped_no_metrics"`
	SkippedImportFailed int `json:"skipped_import_failed"`
}

// BatchSummary aggregates one global batch sweep.
type BatchSummary struct {
	UsersProcessed   int      `json:"users_processed"`
	TotalEvaluations int      `json:"total_evaluations"`
	TotalImproved    int      `json:"total_improved"`
	TotalAdvanced    int      `json:"total_advanced"`
	TotalSkipped     int      `json:"total_skipped"`
	Errors           []string `json:"errors"`
}

type itemResult struct {
	tag     string
	outcome string
}
