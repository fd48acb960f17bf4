package recovery

import (
	"testing"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

func newSaverFixture(t *testing.T) (*session.Machine, *Store, *Saver, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	machine := session.NewMachine(fake)
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	saver := NewSaver(machine, store, fake, 30*time.Second, discardLogger())
	return machine, store, saver, fake
}

func startSaverSession(t *testing.T, m *session.Machine) {
	t.Helper()
	_, err := m.StartWorkout(nil, "Pull Day", []models.TemplateBlock{{
		Kind:     models.BlockExercise,
		Exercise: models.ExerciseRef{ID: "row", Name: "Barbell Row"},
		Sets:     3,
		Reps:     models.RepRange{Min: 6, Max: 8},
	}}, nil, 90)
	if err != nil {
		t.Fatal(err)
	}
}

// TestSaveNow verifies an immediate event-driven save writes the minimal
// record: identity, snapshot, coarse state, no step position.
func TestSaveNow(t *testing.T) {
	machine, store, saver, fake := newSaverFixture(t)
	startSaverSession(t, machine)

	saver.SaveNow()

	rec, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("no record after SaveNow")
	}
	if rec.TemplateName != "Pull Day" {
		t.Errorf("template = %q, want Pull Day", rec.TemplateName)
	}
	if rec.StateTag != string(session.StateExercising) {
		t.Errorf("state_tag = %q, want exercising", rec.StateTag)
	}
	if !rec.SavedAt.Equal(fake.Now()) {
		t.Errorf("saved_at = %v, want %v", rec.SavedAt, fake.Now())
	}
	if len(rec.TemplateSnapshot) != 1 || rec.TemplateSnapshot[0].Exercise.ID != "row" {
		t.Errorf("snapshot = %+v, want single row block", rec.TemplateSnapshot)
	}
}

// TestSaveNowIdle verifies no record is written when the machine is idle.
func TestSaveNowIdle(t *testing.T) {
	_, store, saver, _ := newSaverFixture(t)

	saver.SaveNow()

	rec, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("got %+v, want nil — idle machine saved a record", rec)
	}
}

// TestPeriodicSave verifies the background loop writes on the clock's
// cadence.
func TestPeriodicSave(t *testing.T) {
	machine, store, saver, fake := newSaverFixture(t)
	startSaverSession(t, machine)

	saver.Run()
	defer saver.Stop()

	// The loop registers its ticker asynchronously; advance until the
	// record shows up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		fake.Advance(30 * time.Second)
		rec, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if rec != nil {
			if rec.SessionID == "" {
				t.Error("periodic save wrote an empty session id")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("periodic save never landed")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestRecordFor verifies the translation from session to tier-3 record.
func TestRecordFor(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	machine := session.NewMachine(fake)
	startSaverSession(t, machine)
	if _, err := machine.AdvanceStep(); err != nil { // onto the first rest
		t.Fatal(err)
	}
	end := fake.Now().Add(90 * time.Second)
	if err := machine.SetTimerEnd(&end); err != nil {
		t.Fatal(err)
	}

	sess := machine.Session()
	now := fake.Now().Add(5 * time.Second)
	rec := RecordFor(sess, now)

	if rec.SessionID != sess.ID {
		t.Errorf("session_id = %q, want %q", rec.SessionID, sess.ID)
	}
	if rec.StateTag != string(session.StateResting) {
		t.Errorf("state_tag = %q, want resting", rec.StateTag)
	}
	if rec.TimerEndsAt == nil || !rec.TimerEndsAt.Equal(end) {
		t.Errorf("timer_ends_at = %v, want %v", rec.TimerEndsAt, end)
	}
	if !rec.SavedAt.Equal(now) {
		t.Errorf("saved_at = %v, want %v", rec.SavedAt, now)
	}
}

// TestRecordExpiry verifies the age check used by LoadFresh.
func TestRecordExpiry(t *testing.T) {
	now := time.Now()
	rec := models.CrashRecoveryRecord{SavedAt: now.Add(-5 * time.Hour)}
	if !rec.Expired(now, 4*time.Hour) {
		t.Error("5-hour-old record should be expired at 4h max age")
	}
	rec.SavedAt = now.Add(-3 * time.Hour)
	if rec.Expired(now, 4*time.Hour) {
		t.Error("3-hour-old record should be fresh at 4h max age")
	}
}
