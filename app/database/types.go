package database

import (
	"time"
)

// EvaluationConfig status values.
const (
	ConfigStatusActive   = "active"
	ConfigStatusInactive = "inactive"
)

// Evaluation outcome values for successful history entries.
const (
	OutcomeImproved = "improved"
	OutcomeNoChange = "no_change"
	OutcomeWorse    = "worse"
)

// History outcome types.
const (
	OutcomeTypeSuccess = "success"
	OutcomeTypeError   = "error"
)

// Error codes for failed evaluation attempts.
const (
	ErrorCodeImportFailed = "import_failed"
	ErrorCodeNoMetrics    = "no_metrics"
)

// EvaluationConfig is the per-item tracking registration. BaseEvaluationDate
// is the fixed anchor from which cycles are computed; the engine never
// touches it.
type EvaluationConfig struct {
	ID                     string
	UserID                 string
	ContentItemID          string
	PropertyURI            string
	BaseEvaluationDate     time.Time
	CycleDays              int
	EvaluationHour         int
	LastEvaluatedOn        *time.Time
	LastSeenPosition       *float64
	CurrentSuggestionStage int
	Status                 string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// EvaluationHistory is one immutable evaluation attempt. Success rows carry
// positions and an outcome; error rows carry an error code and message.
// Exactly one of the two shapes is populated.
type EvaluationHistory struct {
	ID                string
	UserID            string
	ContentItemID     string
	EvaluationDate    time.Time
	OutcomeType       string
	PreviousPosition  *float64
	CurrentPosition   *float64
	Outcome           *string
	ErrorCode         *string
	ErrorMessage      *string
	SuggestionApplied bool
	SuggestionSummary *string
	IsRead            bool
	CreatedAt         time.Time
}

// RankingMetric is one imported search-analytics data point for a content
// item on a given date. Position is nullable: the source reports impressions
// without a position for pages that received no ranked impressions.
type RankingMetric struct {
	ID            string
	UserID        string
	PropertyURI   string
	ContentItemID string
	MetricDate    time.Time
	Position      *float64
	Clicks        int
	Impressions   int
	CTR           float64
	CreatedAt     time.Time
}
