package models

import "fmt"

// BlockKind discriminates the two template block variants.
type BlockKind string

const (
	BlockExercise BlockKind = "exercise"
	BlockSuperset BlockKind = "superset"
)

// ExerciseRef identifies an exercise in the catalog together with its
// display name as snapshotted at workout start. The catalog itself is
// external; sessions and history only ever carry these snapshots.
type ExerciseRef struct {
	ID   string `json:"id" cbor:"1,keyasint"`
	Name string `json:"name" cbor:"2,keyasint"`
}

// RepRange is an inclusive target rep range for a set.
type RepRange struct {
	Min int `json:"min" cbor:"1,keyasint"`
	Max int `json:"max" cbor:"2,keyasint"`
}

// TemplateBlock is the authoring-time unit of a workout template.
// Kind selects which fields are meaningful: an exercise block uses
// Exercise/Sets, a superset uses Exercises/Rounds plus the intra-superset
// rest fields. Sessions hold deep copies; blocks never change after start.
type TemplateBlock struct {
	Kind BlockKind `json:"kind" cbor:"1,keyasint"`

	// Exercise block fields.
	Exercise ExerciseRef `json:"exercise,omitempty" cbor:"2,keyasint,omitempty"`
	Sets     int         `json:"sets,omitempty" cbor:"3,keyasint,omitempty"`

	// Superset block fields. Rounds plays the role of Sets: each round
	// rotates through Exercises in order.
	Exercises []ExerciseRef `json:"exercises,omitempty" cbor:"4,keyasint,omitempty"`
	Rounds    int           `json:"rounds,omitempty" cbor:"5,keyasint,omitempty"`

	Reps RepRange `json:"reps" cbor:"6,keyasint"`

	// RestSec overrides the template/global default rest between sets
	// (exercise blocks) or before each non-first round start is governed
	// by RestBetweenRoundsSec (supersets). Nil means "inherit".
	RestSec                 *int `json:"rest_sec,omitempty" cbor:"7,keyasint,omitempty"`
	RestBetweenExercisesSec *int `json:"rest_between_exercises_sec,omitempty" cbor:"8,keyasint,omitempty"`
	RestBetweenRoundsSec    *int `json:"rest_between_rounds_sec,omitempty" cbor:"9,keyasint,omitempty"`

	// TransitionRestSec is the rest inserted between this block and the
	// next one. Nil means "inherit".
	TransitionRestSec *int `json:"transition_rest_sec,omitempty" cbor:"10,keyasint,omitempty"`
}

// Validate checks the authoring-time invariants.
func (b TemplateBlock) Validate() error {
	if b.Reps.Min > b.Reps.Max {
		return fmt.Errorf("rep range min %d > max %d", b.Reps.Min, b.Reps.Max)
	}
	switch b.Kind {
	case BlockExercise:
		if b.Sets < 1 {
			return fmt.Errorf("exercise block needs at least 1 set, got %d", b.Sets)
		}
		if b.Exercise.ID == "" {
			return fmt.Errorf("exercise block missing exercise reference")
		}
	case BlockSuperset:
		if b.Rounds < 1 {
			return fmt.Errorf("superset block needs at least 1 round, got %d", b.Rounds)
		}
		if len(b.Exercises) < 2 {
			return fmt.Errorf("superset block needs at least 2 exercises, got %d", len(b.Exercises))
		}
		for i, ex := range b.Exercises {
			if ex.ID == "" {
				return fmt.Errorf("superset exercise %d missing exercise reference", i)
			}
		}
	default:
		return fmt.Errorf("unknown block kind %q", b.Kind)
	}
	return nil
}

// CloneBlocks returns a fully independent copy of a block slice. Used at
// workout start so later template edits cannot reach into the session
// snapshot or into written history.
func CloneBlocks(blocks []TemplateBlock) []TemplateBlock {
	out := make([]TemplateBlock, len(blocks))
	for i, b := range blocks {
		c := b
		if b.Exercises != nil {
			c.Exercises = append([]ExerciseRef(nil), b.Exercises...)
		}
		c.RestSec = cloneIntPtr(b.RestSec)
		c.RestBetweenExercisesSec = cloneIntPtr(b.RestBetweenExercisesSec)
		c.RestBetweenRoundsSec = cloneIntPtr(b.RestBetweenRoundsSec)
		c.TransitionRestSec = cloneIntPtr(b.TransitionRestSec)
		out[i] = c
	}
	return out
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
