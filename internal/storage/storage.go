// Package storage persists the completion pipeline's output: workout
// logs and denormalized exercise history. SQLite is the default for a
// purely local install; the Postgres backend exists for self-hosters
// who already run one. Readers only ever see committed completions —
// the in-progress session never touches this package.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested log does not exist.
var ErrNotFound = errors.New("not found")

// Bests aggregates the maxima of exercise history rows — the "previous
// best" side of a personal-record comparison, or the current records
// for display.
type Bests struct {
	Entries     int64  `json:"entries"`
	BestWeightG int64  `json:"best_weight_g"`
	BestVolume  int64  `json:"best_volume"`
	Best1RMG    *int64 `json:"best_1rm_g,omitempty"`
}

// Stats holds aggregate statistics over all recorded history.
type Stats struct {
	TotalLogs         int64      `json:"total_logs"`
	CompletedLogs     int64      `json:"completed_logs"`
	PartialLogs       int64      `json:"partial_logs"`
	TotalVolume       int64      `json:"total_volume"`
	TotalSets         int64      `json:"total_sets"`
	DistinctExercises int64      `json:"distinct_exercises"`
	EarliestLog       *time.Time `json:"earliest_log,omitempty"`
	LatestLog         *time.Time `json:"latest_log,omitempty"`
}

// Store is the history repository. SaveCompletedWorkout is the single
// write path and runs in one transaction: a log is never observable
// without its history rows or vice versa.
type Store interface {
	SaveCompletedWorkout(ctx context.Context, log models.WorkoutLog, entries []models.ExerciseHistoryEntry) error

	GetWorkoutLog(ctx context.Context, id uuid.UUID) (*models.WorkoutLog, error)
	ListWorkoutLogs(ctx context.Context, start, end time.Time, limit int) ([]models.WorkoutLog, error)

	ExerciseHistory(ctx context.Context, exerciseID string, start, end time.Time) ([]models.ExerciseHistoryEntry, error)

	// PriorBests aggregates all history rows for an exercise excluding
	// those belonging to excludeLogID, so a log is never compared
	// against itself. Returns nil when no prior rows exist.
	PriorBests(ctx context.Context, exerciseID string, excludeLogID uuid.UUID) (*Bests, error)

	// ExerciseRecords returns the current bests across all history.
	// Returns nil when the exercise has no history.
	ExerciseRecords(ctx context.Context, exerciseID string) (*Bests, error)

	Stats(ctx context.Context) (*Stats, error)

	Close()
}
