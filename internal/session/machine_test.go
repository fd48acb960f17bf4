package session

import (
	"errors"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/models"
)

func testBlocks() []models.TemplateBlock {
	return []models.TemplateBlock{{
		Kind:     models.BlockExercise,
		Exercise: models.ExerciseRef{ID: "bench", Name: "Bench Press"},
		Sets:     3,
		RestSec:  intPtr(60),
		Reps:     models.RepRange{Min: 8, Max: 10},
	}}
}

func startTestSession(t *testing.T, m *Machine) *Session {
	t.Helper()
	sess, err := m.StartWorkout(nil, "Push Day", testBlocks(), nil, 90)
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

// TestStartWorkout verifies a fresh session: generated steps, empty
// performed slots, pointer at step zero.
func TestStartWorkout(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	sess := startTestSession(t, m)

	if sess.ID == "" {
		t.Error("session ID not assigned")
	}
	if sess.CurrentStep != 0 {
		t.Errorf("current step = %d, want 0", sess.CurrentStep)
	}
	if len(sess.Steps) != 6 {
		t.Errorf("steps = %d, want 6", len(sess.Steps))
	}
	if len(sess.Performed) != 3 {
		t.Errorf("performed slots = %d, want 3", len(sess.Performed))
	}
	if got := sess.State(); got != StateExercising {
		t.Errorf("state = %s, want exercising", got)
	}
}

// TestStartWorkoutValidation verifies invalid blocks are refused and the
// machine stays idle.
func TestStartWorkoutValidation(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	_, err := m.StartWorkout(nil, "Bad", []models.TemplateBlock{{Kind: models.BlockExercise}}, nil, 90)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if m.Session() != nil {
		t.Error("machine not idle after rejected start")
	}
}

// TestStartWorkoutNoBlocks verifies an empty template is refused rather
// than producing a session that is born complete.
func TestStartWorkoutNoBlocks(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	if _, err := m.StartWorkout(nil, "Empty", nil, nil, 90); err == nil {
		t.Fatal("expected error for a workout with no blocks")
	}
	if m.Session() != nil {
		t.Error("machine not idle after rejected start")
	}
}

// TestStartWorkoutReplacesSession verifies starting again discards the
// prior session unconditionally.
func TestStartWorkoutReplacesSession(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	first := startTestSession(t, m)

	second, err := m.StartWorkout(nil, "Leg Day", testBlocks(), nil, 90)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Error("new session reused old ID")
	}
	if got := m.Session().TemplateName; got != "Leg Day" {
		t.Errorf("active session = %q, want Leg Day", got)
	}
}

// TestSnapshotImmuneToTemplateEdits verifies mutating the caller's block
// slice after start does not reach the session snapshot.
func TestSnapshotImmuneToTemplateEdits(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	blocks := testBlocks()
	if _, err := m.StartWorkout(nil, "Push Day", blocks, nil, 90); err != nil {
		t.Fatal(err)
	}

	blocks[0].Exercise.Name = "Edited"
	*blocks[0].RestSec = 999

	sess := m.Session()
	if sess.Snapshot[0].Exercise.Name != "Bench Press" {
		t.Errorf("snapshot exercise = %q, want Bench Press", sess.Snapshot[0].Exercise.Name)
	}
	if *sess.Snapshot[0].RestSec != 60 {
		t.Errorf("snapshot rest = %d, want 60", *sess.Snapshot[0].RestSec)
	}
}

// TestAdvanceStep verifies the pointer moves one step at a time through
// the state sequence and refuses to pass the complete step.
func TestAdvanceStep(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	wantStates := []State{StateResting, StateExercising, StateResting, StateExercising}
	for i, want := range wantStates {
		sess, err := m.AdvanceStep()
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if got := sess.State(); got != want {
			t.Errorf("advance %d: state = %s, want %s", i, got, want)
		}
	}

	// Onto the complete step (recap — nothing logged).
	sess, err := m.AdvanceStep()
	if err != nil {
		t.Fatal(err)
	}
	if got := sess.State(); got != StateRecap {
		t.Errorf("state = %s, want recap", got)
	}

	// Past the end is refused.
	if _, err := m.AdvanceStep(); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("advance past end = %v, want ErrSessionComplete", err)
	}
}

// TestAdvanceStepClearsTimer verifies an armed rest timer anchor does
// not survive a step transition.
func TestAdvanceStepClearsTimer(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	if _, err := m.AdvanceStep(); err != nil { // onto rest
		t.Fatal(err)
	}
	end := time.Now().Add(time.Minute)
	if err := m.SetTimerEnd(&end); err != nil {
		t.Fatal(err)
	}

	sess, err := m.AdvanceStep()
	if err != nil {
		t.Fatal(err)
	}
	if sess.TimerEndsAt != nil {
		t.Error("timer anchor survived step advance")
	}
}

// TestLogSet verifies slot addressing by block, set index, and exercise,
// and that relogging a slot overwrites it.
func TestLogSet(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	set := models.PerformedSet{
		Exercise:   models.ExerciseRef{ID: "bench", Name: "Bench Press"},
		BlockIndex: 0,
		SetIndex:   1,
		Reps:       8,
		WeightG:    80000,
	}
	sess, err := m.LogSet(set)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Performed[0] != nil || sess.Performed[2] != nil {
		t.Error("wrong slots filled")
	}
	if sess.Performed[1] == nil || sess.Performed[1].WeightG != 80000 {
		t.Errorf("slot 1 = %+v, want weight 80000", sess.Performed[1])
	}
	if sess.LoggedCount() != 1 {
		t.Errorf("logged count = %d, want 1", sess.LoggedCount())
	}

	// Overwrite the same slot.
	set.WeightG = 82500
	sess, err = m.LogSet(set)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Performed[1].WeightG != 82500 {
		t.Errorf("slot 1 weight = %d after relog, want 82500", sess.Performed[1].WeightG)
	}
	if sess.LoggedCount() != 1 {
		t.Errorf("logged count = %d after relog, want 1", sess.LoggedCount())
	}
}

// TestLogSetUnknownSlot verifies a set that matches no exercise step is
// rejected.
func TestLogSetUnknownSlot(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	_, err := m.LogSet(models.PerformedSet{
		Exercise: models.ExerciseRef{ID: "deadlift"},
		SetIndex: 0,
	})
	if !errors.Is(err, ErrNoSuchStep) {
		t.Errorf("err = %v, want ErrNoSuchStep", err)
	}
}

// TestUpdateSet verifies explicit slot rewrites and bounds checking.
func TestUpdateSet(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	set := models.PerformedSet{Exercise: models.ExerciseRef{ID: "bench"}, SetIndex: 2, Reps: 10, WeightG: 75000}
	sess, err := m.UpdateSet(2, set)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Performed[2] == nil || sess.Performed[2].Reps != 10 {
		t.Errorf("slot 2 = %+v, want reps 10", sess.Performed[2])
	}

	if _, err := m.UpdateSet(7, set); !errors.Is(err, ErrNoSuchStep) {
		t.Errorf("out-of-range slot err = %v, want ErrNoSuchStep", err)
	}
}

// TestEndEarly verifies the jump to the complete step from mid-session
// and that partially logged sessions land in recap.
func TestEndEarly(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	if _, err := m.LogSet(models.PerformedSet{Exercise: models.ExerciseRef{ID: "bench"}, SetIndex: 0, Reps: 8, WeightG: 80000}); err != nil {
		t.Fatal(err)
	}

	sess, err := m.EndEarly()
	if err != nil {
		t.Fatal(err)
	}
	if sess.CurrentStep != len(sess.Steps)-1 {
		t.Errorf("current step = %d, want last", sess.CurrentStep)
	}
	if got := sess.State(); got != StateRecap {
		t.Errorf("state = %s, want recap (unlogged slots remain)", got)
	}
}

// TestStateCompleteWhenAllLogged verifies the complete step reads as
// complete rather than recap once every slot is filled.
func TestStateCompleteWhenAllLogged(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	for i := 0; i < 3; i++ {
		if _, err := m.LogSet(models.PerformedSet{Exercise: models.ExerciseRef{ID: "bench"}, SetIndex: i, Reps: 8, WeightG: 80000}); err != nil {
			t.Fatal(err)
		}
	}
	sess, err := m.EndEarly()
	if err != nil {
		t.Fatal(err)
	}
	if got := sess.State(); got != StateComplete {
		t.Errorf("state = %s, want complete", got)
	}
}

// TestReset verifies the machine returns to idle and actions fail with
// ErrNoActiveSession afterwards.
func TestReset(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	m.Reset()

	if m.Session() != nil {
		t.Error("session survived reset")
	}
	if _, err := m.AdvanceStep(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("advance after reset = %v, want ErrNoActiveSession", err)
	}
	if _, err := m.FinalSnapshot(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("snapshot after reset = %v, want ErrNoActiveSession", err)
	}
}

// TestRestore verifies a mirrored session resumes at its exact step with
// its logged slots intact.
func TestRestore(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	orig := startTestSession(t, m)
	if _, err := m.AdvanceStep(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LogSet(models.PerformedSet{Exercise: models.ExerciseRef{ID: "bench"}, SetIndex: 0, Reps: 9, WeightG: 77500}); err != nil {
		t.Fatal(err)
	}
	saved := m.Session()

	// Fresh machine, as after a process restart.
	m2 := NewMachine(clock.NewFake(time.Now()))
	m2.Restore(saved)

	got := m2.Session()
	if got.ID != orig.ID {
		t.Errorf("restored ID = %s, want %s", got.ID, orig.ID)
	}
	if got.CurrentStep != 1 {
		t.Errorf("restored step = %d, want 1", got.CurrentStep)
	}
	if got.Performed[0] == nil || got.Performed[0].WeightG != 77500 {
		t.Errorf("restored slot 0 = %+v, want weight 77500", got.Performed[0])
	}
}

// TestOnChangeObserver verifies the hook fires after every mutation with
// a copy, and with nil after reset.
func TestOnChangeObserver(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))

	var seen []*Session
	m.SetOnChange(func(s *Session) { seen = append(seen, s) })

	startTestSession(t, m)
	if _, err := m.AdvanceStep(); err != nil {
		t.Fatal(err)
	}
	m.Reset()

	if len(seen) != 3 {
		t.Fatalf("observer fired %d times, want 3", len(seen))
	}
	if seen[0] == nil || seen[0].CurrentStep != 0 {
		t.Error("first notification not the fresh session")
	}
	if seen[1] == nil || seen[1].CurrentStep != 1 {
		t.Error("second notification not the advanced session")
	}
	if seen[2] != nil {
		t.Error("reset notification should be nil")
	}
}

// TestSessionReturnsCopy verifies mutating a returned session does not
// leak into the machine.
func TestSessionReturnsCopy(t *testing.T) {
	m := NewMachine(clock.NewFake(time.Now()))
	startTestSession(t, m)

	copy1 := m.Session()
	copy1.TemplateName = "Mutated"
	copy1.Performed[0] = &models.PerformedSet{WeightG: 1}

	copy2 := m.Session()
	if copy2.TemplateName != "Push Day" {
		t.Errorf("template name = %q, want Push Day", copy2.TemplateName)
	}
	if copy2.Performed[0] != nil {
		t.Error("performed slot leaked between copies")
	}
}
