package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const historyColumns = `id, user_id, content_item_id, evaluation_date, outcome_type,
	       previous_position, current_position, outcome, error_code, error_message,
	       suggestion_applied, suggestion_summary, is_read, created_at`

// EvaluationHistoryRepository handles database operations for the append-only
// evaluation audit trail.
type EvaluationHistoryRepository struct {
	db *DB
}

// NewEvaluationHistoryRepository creates a new evaluation history repository
func NewEvaluationHistoryRepository(db *DB) *EvaluationHistoryRepository {
	return &EvaluationHistoryRepository{db: db}
}

// InsertError appends an error-shaped history row. The matching evaluation
// config is not touched; failed attempts never advance the registry.
func (r *EvaluationHistoryRepository) InsertError(userID, contentItemID string, evaluationDate time.Time, errorCode, errorMessage string) (string, error) {
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO evaluation_histories (
			id, user_id, content_item_id, evaluation_date, outcome_type,
			error_code, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, userID, contentItemID, evaluationDate, OutcomeTypeError, errorCode, errorMessage)

	if err != nil {
		return "", fmt.Errorf("failed to insert error history: %w", err)
	}

	return id, nil
}

// GetByID retrieves a history entry by id
func (r *EvaluationHistoryRepository) GetByID(id string) (*EvaluationHistory, error) {
	row := r.db.QueryRow(`
		SELECT `+historyColumns+`
		FROM evaluation_histories
		WHERE id = $1
	`, id)

	entry, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}

	return entry, nil
}

// ListByUser returns a user's history entries, newest first, optionally
// scoped to one content item.
func (r *EvaluationHistoryRepository) ListByUser(userID string, contentItemID string, limit int) ([]EvaluationHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + historyColumns + `
		FROM evaluation_histories
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if contentItemID != "" {
		query += ` AND content_item_id = $2`
		args = append(args, contentItemID)
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	var entries []EvaluationHistory
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return entries, nil
}

// MarkRead flags an entry as read by its owning user.
func (r *EvaluationHistoryRepository) MarkRead(id, userID string) error {
	result, err := r.db.Exec(`
		UPDATE evaluation_histories
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark history entry read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check mark-read result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetSuggestionSummary writes the generated suggestion text back onto a
// history row. Called by the suggestion worker, not by the evaluation engine.
func (r *EvaluationHistoryRepository) SetSuggestionSummary(id, summary string) error {
	result, err := r.db.Exec(`
		UPDATE evaluation_histories
		SET suggestion_summary = $2
		WHERE id = $1
	`, id, summary)
	if err != nil {
		return fmt.Errorf("failed to set suggestion summary: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check summary update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// CountByUser returns the number of history entries for a user.
func (r *EvaluationHistoryRepository) CountByUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM evaluation_histories WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}

func scanHistory(row rowScanner) (*EvaluationHistory, error) {
	var entry EvaluationHistory
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.ContentItemID, &entry.EvaluationDate,
		&entry.OutcomeType, &entry.PreviousPosition, &entry.CurrentPosition,
		&entry.Outcome, &entry.ErrorCode, &entry.ErrorMessage,
		&entry.SuggestionApplied, &entry.SuggestionSummary, &entry.IsRead,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
