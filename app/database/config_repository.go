package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrDuplicateConfig is returned when a (user, content item) pair is
	// already registered for tracking.
	ErrDuplicateConfig = errors.New("evaluation config already registered for this content item")

	// ErrNotFound is returned when a row does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("record not found")
)

const configColumns = `id, user_id, content_item_id, property_uri, base_evaluation_date,
	       cycle_days, evaluation_hour, last_evaluated_on, last_seen_position,
	       current_suggestion_stage, status, created_at, updated_at`

// EvaluationConfigRepository handles database operations for evaluation configs
type EvaluationConfigRepository struct {
	db *DB
}

// NewEvaluationConfigRepository creates a new evaluation config repository
func NewEvaluationConfigRepository(db *DB) *EvaluationConfigRepository {
	return &EvaluationConfigRepository{db: db}
}

// Create registers a content item for tracking. A duplicate
// (user, content item) pair is rejected with ErrDuplicateConfig.
func (r *EvaluationConfigRepository) Create(config EvaluationConfig) (string, error) {
	id := config.ID
	if id == "" {
		id = uuid.NewString()
	}

	stage := config.CurrentSuggestionStage
	if stage < 1 {
		stage = 1
	}

	status := config.Status
	if status == "" {
		status = ConfigStatusActive
	}

	_, err := r.db.Exec(`
		INSERT INTO evaluation_configs (
			id, user_id, content_item_id, property_uri, base_evaluation_date,
			cycle_days, evaluation_hour, current_suggestion_stage, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, config.UserID, config.ContentItemID, config.PropertyURI,
		config.BaseEvaluationDate, config.CycleDays, config.EvaluationHour,
		stage, status)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrDuplicateConfig
		}
		return "", fmt.Errorf("failed to create evaluation config: %w", err)
	}

	return id, nil
}

// GetByID retrieves an evaluation config by its id
func (r *EvaluationConfigRepository) GetByID(id string) (*EvaluationConfig, error) {
	row := r.db.QueryRow(`
		SELECT `+configColumns+`
		FROM evaluation_configs
		WHERE id = $1
	`, id)

	config, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation config: %w", err)
	}

	return config, nil
}

// GetByUserAndItem retrieves the config registered for a (user, content item) pair
func (r *EvaluationConfigRepository) GetByUserAndItem(userID, contentItemID string) (*EvaluationConfig, error) {
	row := r.db.QueryRow(`
		SELECT `+configColumns+`
		FROM evaluation_configs
		WHERE user_id = $1 AND content_item_id = $2
	`, userID, contentItemID)

	config, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation config: %w", err)
	}

	return config, nil
}

// ListActiveByUser returns a user's active configs, optionally scoped to one
// content item. An empty contentItemID means no scoping.
func (r *EvaluationConfigRepository) ListActiveByUser(userID string, contentItemID string) ([]EvaluationConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM evaluation_configs
		WHERE user_id = $1 AND status = $2
	`
	args := []interface{}{userID, ConfigStatusActive}

	if contentItemID != "" {
		query += ` AND content_item_id = $3`
		args = append(args, contentItemID)
	}

	query += ` ORDER BY created_at`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active configs: %w", err)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// ListAllActive returns every active config across all users, for the batch sweep.
func (r *EvaluationConfigRepository) ListAllActive() ([]EvaluationConfig, error) {
	rows, err := r.db.Query(`
		SELECT `+configColumns+`
		FROM evaluation_configs
		WHERE status = $1
		ORDER BY user_id, created_at
	`, ConfigStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list all active configs: %w", err)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// ListByUser returns all of a user's configs regardless of status.
func (r *EvaluationConfigRepository) ListByUser(userID string) ([]EvaluationConfig, error) {
	rows, err := r.db.Query(`
		SELECT `+configColumns+`
		FROM evaluation_configs
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// UpdateSchedule applies user edits to the schedule fields. Only the
// non-nil fields of update are written.
func (r *EvaluationConfigRepository) UpdateSchedule(id, userID string, update ConfigUpdate) error {
	query := `UPDATE evaluation_configs SET updated_at = NOW()`
	args := []interface{}{id, userID}
	idx := 3

	if update.BaseEvaluationDate != nil {
		query += fmt.Sprintf(`, base_evaluation_date = $%d`, idx)
		args = append(args, *update.BaseEvaluationDate)
		idx++
	}
	if update.CycleDays != nil {
		query += fmt.Sprintf(`, cycle_days = $%d`, idx)
		args = append(args, *update.CycleDays)
		idx++
	}
	if update.EvaluationHour != nil {
		query += fmt.Sprintf(`, evaluation_hour = $%d`, idx)
		args = append(args, *update.EvaluationHour)
		idx++
	}

	query += ` WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update evaluation config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetStatus activates or deactivates a config. Deactivation is the only
// removal path; configs are never deleted.
func (r *EvaluationConfigRepository) SetStatus(id, userID string, status string) error {
	result, err := r.db.Exec(`
		UPDATE evaluation_configs
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, status)
	if err != nil {
		return fmt.Errorf("failed to set config status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// ApplyEvaluationResult advances the config and appends the success history
// row in one transaction, so a crash between the two writes cannot leave the
// registry and the audit trail disagreeing. The base evaluation date is
// deliberately untouched.
func (r *EvaluationConfigRepository) ApplyEvaluationResult(result EvaluationResult) (string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE evaluation_configs
		SET last_seen_position = $2,
		    last_evaluated_on = $3,
		    current_suggestion_stage = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, result.ConfigID, result.CurrentPosition, result.EvaluationDate, result.NextStage)
	if err != nil {
		return "", fmt.Errorf("failed to advance evaluation config: %w", err)
	}

	historyID := uuid.NewString()
	_, err = tx.Exec(`
		INSERT INTO evaluation_histories (
			id, user_id, content_item_id, evaluation_date, outcome_type,
			previous_position, current_position, outcome
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, historyID, result.UserID, result.ContentItemID, result.EvaluationDate,
		OutcomeTypeSuccess, result.PreviousPosition, result.CurrentPosition, result.Outcome)
	if err != nil {
		return "", fmt.Errorf("failed to insert evaluation history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit evaluation result: %w", err)
	}

	return historyID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*EvaluationConfig, error) {
	var config EvaluationConfig
	err := row.Scan(
		&config.ID, &config.UserID, &config.ContentItemID, &config.PropertyURI,
		&config.BaseEvaluationDate, &config.CycleDays, &config.EvaluationHour,
		&config.LastEvaluatedOn, &config.LastSeenPosition,
		&config.CurrentSuggestionStage, &config.Status,
		&config.CreatedAt, &config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func collectConfigs(rows *sql.Rows) ([]EvaluationConfig, error) {
	var configs []EvaluationConfig
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		configs = append(configs, *config)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating config rows: %w", err)
	}

	return configs, nil
}
