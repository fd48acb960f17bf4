package completion

import (
	"context"

	"github.com/claude/liftlog/internal/models"
)

// Achievement describes one newly unlocked badge, opaque to this
// package. Definitions and unlock rules live in the external
// achievement engine; completion only supplies the trigger.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AchievementEvaluator is invoked once per successful completion with
// the written log and the PR verdicts.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, log models.WorkoutLog, records []PersonalRecord) ([]Achievement, error)
}

// NopEvaluator unlocks nothing. The default when no engine is wired.
type NopEvaluator struct{}

func (NopEvaluator) Evaluate(context.Context, models.WorkoutLog, []PersonalRecord) ([]Achievement, error) {
	return nil, nil
}
