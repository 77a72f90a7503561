package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RankingMetricsRepository handles database operations for imported
// search-analytics metrics.
type RankingMetricsRepository struct {
	db *DB
}

// NewRankingMetricsRepository creates a new ranking metrics repository
func NewRankingMetricsRepository(db *DB) *RankingMetricsRepository {
	return &RankingMetricsRepository{db: db}
}

// UpsertMetrics stores an imported window of metrics. Re-imports of the same
// (user, property, item, date) key overwrite the previous values, so running
// an import twice is harmless.
func (r *RankingMetricsRepository) UpsertMetrics(metrics []RankingMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin metrics transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ranking_metrics (
			id, user_id, property_uri, content_item_id, metric_date,
			position, clicks, impressions, ctr
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, property_uri, content_item_id, metric_date) DO UPDATE SET
			position = EXCLUDED.position,
			clicks = EXCLUDED.clicks,
			impressions = EXCLUDED.impressions,
			ctr = EXCLUDED.ctr
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare metrics upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.Exec(id, m.UserID, m.PropertyURI, m.ContentItemID,
			m.MetricDate, m.Position, m.Clicks, m.Impressions, m.CTR); err != nil {
			return fmt.Errorf("failed to upsert metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %w", err)
	}

	return nil
}

// LatestMetric returns the most recent data point with a non-null position
// for a (user, property, content item) key, or nil when none exists.
func (r *RankingMetricsRepository) LatestMetric(userID, propertyURI, contentItemID string) (*RankingMetric, error) {
	var m RankingMetric
	err := r.db.QueryRow(`
		SELECT id, user_id, property_uri, content_item_id, metric_date,
		       position, clicks, impressions, ctr, created_at
		FROM ranking_metrics
		WHERE user_id = $1 AND property_uri = $2 AND content_item_id = $3
		  AND position IS NOT NULL
		ORDER BY metric_date DESC
		LIMIT 1
	`, userID, propertyURI, contentItemID).Scan(
		&m.ID, &m.UserID, &m.PropertyURI, &m.ContentItemID, &m.MetricDate,
		&m.Position, &m.Clicks, &m.Impressions, &m.CTR, &m.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest metric: %w", err)
	}

	return &m, nil
}
