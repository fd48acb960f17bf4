package models

// StepKind discriminates the execution-time step variants.
type StepKind string

const (
	StepExercise StepKind = "exercise"
	StepRest     StepKind = "rest"
	StepComplete StepKind = "complete"
)

// WorkoutStep is one atomic unit of a flattened workout sequence. The
// step generator produces the full sequence once at session start; it is
// only ever read by index afterwards, never re-derived.
type WorkoutStep struct {
	Kind StepKind `json:"kind" cbor:"1,keyasint"`

	// Exercise step fields.
	BlockIndex int         `json:"block_index,omitempty" cbor:"2,keyasint,omitempty"`
	Exercise   ExerciseRef `json:"exercise,omitempty" cbor:"3,keyasint,omitempty"`
	SetIndex   int         `json:"set_index,omitempty" cbor:"4,keyasint,omitempty"`
	TotalSets  int         `json:"total_sets,omitempty" cbor:"5,keyasint,omitempty"`
	Reps       RepRange    `json:"reps,omitempty" cbor:"6,keyasint,omitempty"`

	// Superset position metadata. Size 0 means the step is not part of
	// a superset; otherwise Pos is the 0-based position within a round.
	SupersetRound int `json:"superset_round,omitempty" cbor:"7,keyasint,omitempty"`
	SupersetPos   int `json:"superset_pos,omitempty" cbor:"8,keyasint,omitempty"`
	SupersetSize  int `json:"superset_size,omitempty" cbor:"9,keyasint,omitempty"`

	// Rest step fields.
	RestSec      int  `json:"rest_sec,omitempty" cbor:"10,keyasint,omitempty"`
	SupersetRest bool `json:"superset_rest,omitempty" cbor:"11,keyasint,omitempty"`
}

// CountExerciseSteps returns how many steps in the sequence are exercise
// steps, i.e. how many performed-set slots a session needs.
func CountExerciseSteps(steps []WorkoutStep) int {
	n := 0
	for _, s := range steps {
		if s.Kind == StepExercise {
			n++
		}
	}
	return n
}
