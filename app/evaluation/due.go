package evaluation

import (
	"time"

	"github.com/ymatsuda/rankwatch/app/clock"
	"github.com/ymatsuda/rankwatch/app/database"
)

// NextEvaluationDate is the config's next scheduled evaluation date: one
// cycle after the last evaluation, anchored on the base date when the item
// has never been evaluated.
func NextEvaluationDate(config database.EvaluationConfig) time.Time {
	anchor := config.BaseEvaluationDate
	if config.LastEvaluatedOn != nil {
		anchor = *config.LastEvaluatedOn
	}
	return clock.AddDays(anchor, config.CycleDays)
}

// DueForUser is the per-user due check: due as soon as the next evaluation
// date has arrived, with no hour gating. Deliberately coarser than the batch
// check so a user can trigger a due evaluation manually any time that day.
func DueForUser(config database.EvaluationConfig, today time.Time) bool {
	next := clock.DateOf(NextEvaluationDate(config))
	return !next.After(clock.DateOf(today))
}

// DueForBatch is the cron-side due check: due when the next evaluation date
// has passed, or arrived today and the configured hour has been reached.
// Every config due for the batch is also due per DueForUser, so the batch
// sweep can safely delegate to the per-user path afterwards.
func DueForBatch(config database.EvaluationConfig, today time.Time, currentHour int) bool {
	next := clock.DateOf(NextEvaluationDate(config))
	day := clock.DateOf(today)

	if next.Before(day) {
		return true
	}
	return next.Equal(day) && currentHour >= config.EvaluationHour
}
