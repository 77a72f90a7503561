package evaluation

import (
	"github.com/ymatsuda/rankwatch/app/database"
)

// JudgeOutcome classifies a measurement against the last seen rank position.
// Lower position numbers are better: position 1 beats position 10. A nil
// lastSeen means this is the first measurement, which establishes the
// baseline and cannot be compared.
func JudgeOutcome(lastSeen *float64, current float64) string {
	if lastSeen == nil {
		return database.OutcomeNoChange
	}

	switch {
	case current < *lastSeen:
		return database.OutcomeImproved
	case current > *lastSeen:
		return database.OutcomeWorse
	default:
		return database.OutcomeNoChange
	}
}

// NextStage advances the suggestion stage after an evaluation. Improvement
// resets to stage 1; anything else escalates by one, capped at
// MaxSuggestionStage.
func NextStage(currentStage int, outcome string) int {
	if outcome == database.OutcomeImproved {
		return 1
	}

	if currentStage < 1 {
		currentStage = 1
	}

	next := currentStage + 1
	if next > MaxSuggestionStage {
		next = MaxSuggestionStage
	}

	return next
}
