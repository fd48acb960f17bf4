// Package completion freezes a finished or aborted session into
// permanent history: one workout log, one denormalized history row per
// distinct exercise, and the personal-record verdicts. The batch write
// is atomic — readers never observe a log without its history rows.
package completion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
)

// PersistError wraps a storage failure during the batch write. The
// caller must branch on it: the in-memory session is left untouched so
// the user can retry without losing anything.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persisting completed workout: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// PersonalRecord reports which bests a log's performance beat for one
// exercise. Only exercises with at least one new record appear in the
// result; an exercise with no prior history never yields one — there
// was nothing to beat.
type PersonalRecord struct {
	ExerciseID   string `json:"exercise_id"`
	ExerciseName string `json:"exercise_name"`
	NewWeight    bool   `json:"new_weight"`
	NewVolume    bool   `json:"new_volume"`
	New1RM       bool   `json:"new_1rm"`
	BestWeightG  int64  `json:"best_weight_g"`
	TotalVolume  int64  `json:"total_volume"`
	Est1RMG      *int64 `json:"est_1rm_g,omitempty"`
}

// Result is everything downstream consumers (history UI, achievement
// engine, celebration overlays) need from one completion.
type Result struct {
	Log          models.WorkoutLog             `json:"log"`
	Entries      []models.ExerciseHistoryEntry `json:"entries"`
	Records      []PersonalRecord              `json:"records"`
	Achievements []Achievement                 `json:"achievements,omitempty"`
}

// Pipeline runs completions. Crash-recovery cleanup is the caller's
// job: the tier-3 record must only be deleted after the session itself
// is reset, or a concurrent autosave can resurrect it.
type Pipeline struct {
	store storage.Store
	clk   clock.Clock
	eval  AchievementEvaluator
	log   *slog.Logger
}

// New creates a pipeline. A nil evaluator disables achievement checks.
func New(store storage.Store, clk clock.Clock, eval AchievementEvaluator, log *slog.Logger) *Pipeline {
	if eval == nil {
		eval = NopEvaluator{}
	}
	return &Pipeline{store: store, clk: clk, eval: eval, log: log}
}

// Complete converts the final session snapshot into permanent records.
// On error the store is unchanged (single transaction) and the caller
// must not reset the session; on success the caller resets it
// immediately, which is what makes completion effectively idempotent.
func (p *Pipeline) Complete(ctx context.Context, sess *session.Session) (*Result, error) {
	if sess == nil || sess.StartedAt.IsZero() {
		return nil, session.ErrNoActiveSession
	}

	now := p.clk.Now()
	performed := make([]models.PerformedSet, 0, len(sess.Performed))
	for _, set := range sess.Performed {
		if set != nil {
			performed = append(performed, *set)
		}
	}

	status := models.StatusPartial
	if len(performed) == len(sess.Performed) {
		status = models.StatusCompleted
	}

	var totalVolume int64
	for _, set := range performed {
		totalVolume += set.Volume()
	}

	log := models.WorkoutLog{
		ID:               uuid.New(),
		TemplateID:       sess.TemplateID,
		TemplateName:     sess.TemplateName,
		Status:           status,
		TemplateSnapshot: models.CloneBlocks(sess.Snapshot),
		PerformedSets:    performed,
		StartedAt:        sess.StartedAt,
		EndedAt:          now,
		DurationSec:      int(now.Sub(sess.StartedAt).Seconds()),
		TotalVolume:      totalVolume,
	}

	entries := buildHistoryEntries(log)

	records, err := p.detectRecords(ctx, log.ID, entries)
	if err != nil {
		return nil, &PersistError{Err: err}
	}

	if err := p.store.SaveCompletedWorkout(ctx, log, entries); err != nil {
		return nil, &PersistError{Err: err}
	}

	result := &Result{Log: log, Entries: entries, Records: records}

	unlocked, err := p.eval.Evaluate(ctx, log, records)
	if err != nil {
		p.log.Warn("achievement evaluation failed", "log_id", log.ID, "error", err)
	} else {
		result.Achievements = unlocked
	}

	return result, nil
}

// buildHistoryEntries aggregates performed sets into one row per
// distinct exercise, preserving first-appearance order. The 1RM is the
// best defined Epley estimate across the exercise's sets, or absent
// when no set qualifies.
func buildHistoryEntries(log models.WorkoutLog) []models.ExerciseHistoryEntry {
	var order []string
	byExercise := make(map[string]*models.ExerciseHistoryEntry)

	for _, set := range log.PerformedSets {
		e, ok := byExercise[set.Exercise.ID]
		if !ok {
			e = &models.ExerciseHistoryEntry{
				LogID:        log.ID,
				ExerciseID:   set.Exercise.ID,
				ExerciseName: set.Exercise.Name,
				PerformedAt:  log.EndedAt,
			}
			byExercise[set.Exercise.ID] = e
			order = append(order, set.Exercise.ID)
		}
		if set.WeightG > e.BestWeightG {
			e.BestWeightG = set.WeightG
		}
		e.TotalVolume += set.Volume()
		e.TotalSets++
		e.TotalReps += set.Reps
		if est, ok := models.Epley1RM(set.WeightG, set.Reps); ok {
			if e.Est1RMG == nil || est > *e.Est1RMG {
				v := est
				e.Est1RMG = &v
			}
		}
	}

	entries := make([]models.ExerciseHistoryEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byExercise[id])
	}
	return entries
}

// detectRecords compares each entry against the maxima of all prior
// history for that exercise, excluding rows of the log being written so
// a log is never scored against itself.
func (p *Pipeline) detectRecords(ctx context.Context, logID uuid.UUID, entries []models.ExerciseHistoryEntry) ([]PersonalRecord, error) {
	var records []PersonalRecord
	for _, e := range entries {
		prior, err := p.store.PriorBests(ctx, e.ExerciseID, logID)
		if err != nil {
			return nil, fmt.Errorf("querying prior bests for %s: %w", e.ExerciseID, err)
		}
		if prior == nil {
			// First time this exercise is logged: nothing to beat.
			continue
		}

		pr := PersonalRecord{
			ExerciseID:   e.ExerciseID,
			ExerciseName: e.ExerciseName,
			NewWeight:    e.BestWeightG > prior.BestWeightG,
			NewVolume:    e.TotalVolume > prior.BestVolume,
			New1RM:       e.Est1RMG != nil && (prior.Best1RMG == nil || *e.Est1RMG > *prior.Best1RMG),
			BestWeightG:  e.BestWeightG,
			TotalVolume:  e.TotalVolume,
			Est1RMG:      e.Est1RMG,
		}
		if pr.NewWeight || pr.NewVolume || pr.New1RM {
			records = append(records, pr)
		}
	}
	return records, nil
}
