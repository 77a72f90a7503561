package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ymatsuda/rankwatch/app/clock"
	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/evaluation"
)

func NewHandler(configRepo database.ConfigRepository, historyRepo database.HistoryRepository,
	engine *evaluation.Engine) *Handler {
	return &Handler{
		configRepo:  configRepo,
		historyRepo: historyRepo,
		engine:      engine,
	}
}

// RegisterConfig registers a content item for tracking. The write-path
// validation lives here: the engine trusts stored rows as-is.
func (h *Handler) RegisterConfig(c *gin.Context) {
	userID := c.Param("userId")

	var req RegisterConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.ContentItemID == "" || req.PropertyURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_item_id and property_uri are required"})
		return
	}

	baseDate, err := clock.ParseDate(req.BaseEvaluationDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base_evaluation_date must be a valid YYYY-MM-DD date"})
		return
	}

	if req.CycleDays < 1 || req.CycleDays > 365 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cycle_days must be between 1 and 365"})
		return
	}

	if req.EvaluationHour < 0 || req.EvaluationHour > 23 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evaluation_hour must be between 0 and 23"})
		return
	}

	id, err := h.configRepo.Create(database.EvaluationConfig{
		UserID:             userID,
		ContentItemID:      req.ContentItemID,
		PropertyURI:        req.PropertyURI,
		BaseEvaluationDate: baseDate,
		CycleDays:          req.CycleDays,
		EvaluationHour:     req.EvaluationHour,
	})
	if errors.Is(err, database.ErrDuplicateConfig) {
		c.JSON(http.StatusConflict, gin.H{"error": "Content item already registered"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "register_config", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListConfigs returns all of a user's evaluation configs.
func (h *Handler) ListConfigs(c *gin.Context) {
	userID := c.Param("userId")

	configs, err := h.configRepo.ListByUser(userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_configs", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(configs))
	for _, config := range configs {
		out = append(out, configToJSON(config))
	}

	c.JSON(http.StatusOK, gin.H{"configs": out, "total": len(out)})
}

// UpdateConfig applies user edits to the schedule fields.
func (h *Handler) UpdateConfig(c *gin.Context) {
	userID := c.Param("userId")
	configID := c.Param("configId")

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var update database.ConfigUpdate

	if req.BaseEvaluationDate != nil {
		baseDate, err := clock.ParseDate(*req.BaseEvaluationDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "base_evaluation_date must be a valid YYYY-MM-DD date"})
			return
		}
		update.BaseEvaluationDate = &baseDate
	}

	if req.CycleDays != nil {
		if *req.CycleDays < 1 || *req.CycleDays > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cycle_days must be between 1 and 365"})
			return
		}
		update.CycleDays = req.CycleDays
	}

	if req.EvaluationHour != nil {
		if *req.EvaluationHour < 0 || *req.EvaluationHour > 23 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "evaluation_hour must be between 0 and 23"})
			return
		}
		update.EvaluationHour = req.EvaluationHour
	}

	if update.BaseEvaluationDate == nil && update.CycleDays == nil && update.EvaluationHour == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No editable fields in request"})
		return
	}

	err := h.configRepo.UpdateSchedule(configID, userID, update)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Config not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "update_config", "config_id", configID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ActivateConfig re-enables evaluation for a config.
func (h *Handler) ActivateConfig(c *gin.Context) {
	h.setConfigStatus(c, database.ConfigStatusActive)
}

// DeactivateConfig pauses evaluation for a config. Configs are never
// deleted; deactivation is the only removal path.
func (h *Handler) DeactivateConfig(c *gin.Context) {
	h.setConfigStatus(c, database.ConfigStatusInactive)
}

func (h *Handler) setConfigStatus(c *gin.Context, status string) {
	userID := c.Param("userId")
	configID := c.Param("configId")

	err := h.configRepo.SetStatus(configID, userID, status)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Config not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "set_config_status", "config_id", configID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RunEvaluations triggers an on-demand sweep for a user and returns the
// summary. With force the due-filter is bypassed entirely.
func (h *Handler) RunEvaluations(c *gin.Context) {
	userID := c.Param("userId")

	// An absent body means default options; clients that stream the body
	// report an unknown content length, so only a decoder EOF counts as
	// "no body".
	var req RunEvaluationsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	summary, err := h.engine.RunDueEvaluationsForUser(c.Request.Context(), userID, evaluation.Options{
		Force:         req.Force,
		ContentItemID: req.ContentItemID,
	})
	if err != nil {
		slog.Error("User evaluation sweep failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Evaluation sweep failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunAllEvaluations triggers the batch sweep manually. The same hour-gated
// due-check applies as on the scheduled path.
func (h *Handler) RunAllEvaluations(c *gin.Context) {
	summary, err := h.engine.RunAllDueEvaluations(c.Request.Context())
	if err != nil {
		slog.Error("Batch evaluation sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Batch evaluation sweep failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListHistories returns a user's evaluation history, newest first.
func (h *Handler) ListHistories(c *gin.Context) {
	userID := c.Param("userId")
	contentItemID := c.Query("content_item_id")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	entries, err := h.historyRepo.ListByUser(userID, contentItemID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_histories", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		out = append(out, historyToJSON(entry))
	}

	c.JSON(http.StatusOK, gin.H{"histories": out, "total": len(out)})
}

// MarkHistoryRead flags a history entry as read.
func (h *Handler) MarkHistoryRead(c *gin.Context) {
	userID := c.Param("userId")
	historyID := c.Param("historyId")

	err := h.historyRepo.MarkRead(historyID, userID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "History entry not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "mark_history_read", "history_id", historyID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetHealth reports service liveness and basic counts.
func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if configs, err := h.configRepo.ListAllActive(); err == nil {
		health["active_configs"] = len(configs)
	}

	c.JSON(http.StatusOK, health)
}

// GetStats reports aggregate tracking numbers.
func (h *Handler) GetStats(c *gin.Context) {
	configs, err := h.configRepo.ListAllActive()
	if err != nil {
		slog.Error("Database error", "operation", "stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	users := make(map[string]bool)
	for _, config := range configs {
		users[config.UserID] = true
	}

	c.JSON(http.StatusOK, gin.H{
		"active_configs": len(configs),
		"tracked_users":  len(users),
	})
}

func configToJSON(config database.EvaluationConfig) map[string]interface{} {
	out := map[string]interface{}{
		"id":                       config.ID,
		"user_id":                  config.UserID,
		"content_item_id":          config.ContentItemID,
		"property_uri":             config.PropertyURI,
		"base_evaluation_date":     clock.FormatDate(config.BaseEvaluationDate),
		"cycle_days":               config.CycleDays,
		"evaluation_hour":          config.EvaluationHour,
		"current_suggestion_stage": config.CurrentSuggestionStage,
		"status":                   config.Status,
		"created_at":               config.CreatedAt,
		"updated_at":               config.UpdatedAt,
	}

	if config.LastEvaluatedOn != nil {
		out["last_evaluated_on"] = clock.FormatDate(*config.LastEvaluatedOn)
	}
	if config.LastSeenPosition != nil {
		out["last_seen_position"] = *config.LastSeenPosition
	}

	return out
}

func historyToJSON(entry database.EvaluationHistory) map[string]interface{} {
	out := map[string]interface{}{
		"id":              entry.ID,
		"user_id":         entry.UserID,
		"content_item_id": entry.ContentItemID,
		"evaluation_date": clock.FormatDate(entry.EvaluationDate),
		"outcome_type":    entry.OutcomeType,
		"is_read":         entry.IsRead,
		"created_at":      entry.CreatedAt,
	}

	if entry.OutcomeType == database.OutcomeTypeSuccess {
		if entry.PreviousPosition != nil {
			out["previous_position"] = *entry.PreviousPosition
		}
		if entry.CurrentPosition != nil {
			out["current_position"] = *entry.CurrentPosition
		}
		if entry.Outcome != nil {
			out["outcome"] = *entry.Outcome
		}
	} else {
		if entry.ErrorCode != nil {
			out["error_code"] = *entry.ErrorCode
		}
		if entry.ErrorMessage != nil {
			out["error_message"] = *entry.ErrorMessage
		}
	}

	if entry.SuggestionSummary != nil {
		out["suggestion_summary"] = *entry.SuggestionSummary
	}

	return out
}
