package api

import (
	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/evaluation"
)

// Handler carries the dependencies for the HTTP endpoints.
type Handler struct {
	configRepo  database.ConfigRepository
	historyRepo database.HistoryRepository
	engine      *evaluation.Engine
}

// RegisterConfigRequest is the payload for registering a content item.
type RegisterConfigRequest struct {
	ContentItemID      string `json:"content_item_id"`
	PropertyURI        string `json:"property_uri"`
	BaseEvaluationDate string `json:"base_evaluation_date"`
	CycleDays          int    `json:"cycle_days"`
	EvaluationHour     int    `json:"evaluation_hour"`
}

// UpdateConfigRequest carries the user-editable schedule fields. Omitted
// fields are left unchanged.
type UpdateConfigRequest struct {
	BaseEvaluationDate *string `json:"base_evaluation_date"`
	CycleDays          *int    `json:"cycle_days"`
	EvaluationHour     *int    `json:"evaluation_hour"`
}

// RunEvaluationsRequest triggers an on-demand sweep for a user.
type RunEvaluationsRequest struct {
	Force         bool   `json:"force"`
	ContentItemID string `json:"content_item_id"`
}
