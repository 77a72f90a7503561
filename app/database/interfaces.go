package database

import (
	"time"
)

// EvaluationResult carries the fields the engine persists after a successful
// evaluation: the config advance and the matching history row, written in
// one transaction.
type EvaluationResult struct {
	ConfigID         string
	UserID           string
	ContentItemID    string
	EvaluationDate   time.Time
	PreviousPosition *float64
	CurrentPosition  float64
	Outcome          string
	NextStage        int
}

// ConfigUpdate carries the user-editable schedule fields.
type ConfigUpdate struct {
	BaseEvaluationDate *time.Time
	CycleDays          *int
	EvaluationHour     *int
}

type ConfigRepository interface {
	Create(config EvaluationConfig) (string, error)
	GetByID(id string) (*EvaluationConfig, error)
	GetByUserAndItem(userID, contentItemID string) (*EvaluationConfig, error)
	ListActiveByUser(userID string, contentItemID string) ([]EvaluationConfig, error)
	ListAllActive() ([]EvaluationConfig, error)
	ListByUser(userID string) ([]EvaluationConfig, error)

	UpdateSchedule(id, userID string, update ConfigUpdate) error
	SetStatus(id, userID string, status string) error

	// ApplyEvaluationResult advances the config (last seen position, last
	// evaluated date, suggestion stage) and appends the success history row
	// in a single transaction. Returns the generated history id.
	ApplyEvaluationResult(result EvaluationResult) (string, error)
}

type HistoryRepository interface {
	InsertError(userID, contentItemID string, evaluationDate time.Time, errorCode, errorMessage string) (string, error)
	GetByID(id string) (*EvaluationHistory, error)
	ListByUser(userID string, contentItemID string, limit int) ([]EvaluationHistory, error)
	MarkRead(id, userID string) error
	SetSuggestionSummary(id, summary string) error
	CountByUser(userID string) (int, error)
}

type MetricsRepository interface {
	UpsertMetrics(metrics []RankingMetric) error
	LatestMetric(userID, propertyURI, contentItemID string) (*RankingMetric, error)
}
