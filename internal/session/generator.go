package session

import "github.com/claude/liftlog/internal/models"

// ResolveRest picks the rest duration for a gap using the override
// chain: block override, then template default, then global default.
func ResolveRest(blockRest, templateRest *int, globalRest int) int {
	if blockRest != nil {
		return *blockRest
	}
	if templateRest != nil {
		return *templateRest
	}
	return globalRest
}

// GenerateSteps flattens template blocks into the ordered step sequence
// a session executes. Pure and deterministic: same blocks and defaults
// always yield the same sequence. The result always ends with exactly
// one complete step, and no rest step ever follows the final exercise
// step of the whole sequence. Zero blocks yield just the complete step.
func GenerateSteps(blocks []models.TemplateBlock, templateRest *int, globalRest int) []models.WorkoutStep {
	var steps []models.WorkoutStep

	for bi, b := range blocks {
		switch b.Kind {
		case models.BlockSuperset:
			steps = append(steps, supersetSteps(bi, b, templateRest, globalRest)...)
		default:
			steps = append(steps, exerciseSteps(bi, b, templateRest, globalRest)...)
		}

		// Transition rest between blocks, never after the last one.
		if bi < len(blocks)-1 {
			steps = append(steps, models.WorkoutStep{
				Kind:    models.StepRest,
				RestSec: ResolveRest(b.TransitionRestSec, templateRest, globalRest),
			})
		}
	}

	return append(steps, models.WorkoutStep{Kind: models.StepComplete})
}

// exerciseSteps emits one exercise step per set with rest steps between
// consecutive sets.
func exerciseSteps(bi int, b models.TemplateBlock, templateRest *int, globalRest int) []models.WorkoutStep {
	var steps []models.WorkoutStep
	for set := 0; set < b.Sets; set++ {
		if set > 0 {
			steps = append(steps, models.WorkoutStep{
				Kind:    models.StepRest,
				RestSec: ResolveRest(b.RestSec, templateRest, globalRest),
			})
		}
		steps = append(steps, models.WorkoutStep{
			Kind:       models.StepExercise,
			BlockIndex: bi,
			Exercise:   b.Exercise,
			SetIndex:   set,
			TotalSets:  b.Sets,
			Reps:       b.Reps,
		})
	}
	return steps
}

// supersetSteps emits rounds × exercises steps, preserving exercise
// order within each round. Rests between exercises of a round and
// between rounds use the superset's own override fields.
func supersetSteps(bi int, b models.TemplateBlock, templateRest *int, globalRest int) []models.WorkoutStep {
	var steps []models.WorkoutStep
	for round := 0; round < b.Rounds; round++ {
		if round > 0 {
			steps = append(steps, models.WorkoutStep{
				Kind:         models.StepRest,
				RestSec:      ResolveRest(b.RestBetweenRoundsSec, templateRest, globalRest),
				SupersetRest: true,
			})
		}
		for pos, ex := range b.Exercises {
			if pos > 0 {
				steps = append(steps, models.WorkoutStep{
					Kind:         models.StepRest,
					RestSec:      ResolveRest(b.RestBetweenExercisesSec, templateRest, globalRest),
					SupersetRest: true,
				})
			}
			steps = append(steps, models.WorkoutStep{
				Kind:          models.StepExercise,
				BlockIndex:    bi,
				Exercise:      ex,
				SetIndex:      round,
				TotalSets:     b.Rounds,
				Reps:          b.Reps,
				SupersetRound: round,
				SupersetPos:   pos,
				SupersetSize:  len(b.Exercises),
			})
		}
	}
	return steps
}
