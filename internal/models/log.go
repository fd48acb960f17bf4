package models

import (
	"time"

	"github.com/google/uuid"
)

// LogStatus marks whether every exercise step of a session received a
// performed set.
type LogStatus string

const (
	StatusCompleted LogStatus = "completed"
	StatusPartial   LogStatus = "partial"
)

// PerformedSet is one logged set. The exercise name is a snapshot taken
// at logging time so later catalog edits cannot rewrite history. Weight
// is in grams (integer smallest unit); display formatting happens at the
// render boundary, never here.
type PerformedSet struct {
	Exercise   ExerciseRef `json:"exercise" cbor:"1,keyasint"`
	BlockIndex int         `json:"block_index" cbor:"2,keyasint"`
	SetIndex   int         `json:"set_index" cbor:"3,keyasint"`
	TargetReps RepRange    `json:"target_reps" cbor:"4,keyasint"`
	Reps       int         `json:"reps" cbor:"5,keyasint"`
	WeightG    int64       `json:"weight_g" cbor:"6,keyasint"`
}

// Volume returns weight × reps for this set, in grams.
func (p PerformedSet) Volume() int64 {
	return p.WeightG * int64(p.Reps)
}

// WorkoutLog is the permanent, self-contained record of a finished or
// aborted session. TemplateSnapshot and PerformedSets are frozen at
// write time and never change, even if the source template or exercise
// catalog is later edited or deleted.
type WorkoutLog struct {
	ID               uuid.UUID       `json:"id"`
	TemplateID       *string         `json:"template_id,omitempty"`
	TemplateName     string          `json:"template_name"`
	Status           LogStatus       `json:"status"`
	TemplateSnapshot []TemplateBlock `json:"template_snapshot"`
	PerformedSets    []PerformedSet  `json:"performed_sets"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          time.Time       `json:"ended_at"`
	DurationSec      int             `json:"duration_sec"`
	TotalVolume      int64           `json:"total_volume"`
}

// ExerciseHistoryEntry is the denormalized analytics row written once
// per distinct exercise per log. Read-heavy afterwards; all progress
// charts and PR comparisons run off these rows, not the logs.
type ExerciseHistoryEntry struct {
	LogID        uuid.UUID `json:"log_id"`
	ExerciseID   string    `json:"exercise_id"`
	ExerciseName string    `json:"exercise_name"`
	PerformedAt  time.Time `json:"performed_at"`
	BestWeightG  int64     `json:"best_weight_g"`
	TotalVolume  int64     `json:"total_volume"`
	TotalSets    int       `json:"total_sets"`
	TotalReps    int       `json:"total_reps"`
	Est1RMG      *int64    `json:"est_1rm_g,omitempty"`
}
