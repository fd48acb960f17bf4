package recovery

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession(t *testing.T) *session.Session {
	t.Helper()
	m := session.NewMachine(clock.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)))
	_, err := m.StartWorkout(nil, "Push Day", []models.TemplateBlock{{
		Kind:     models.BlockExercise,
		Exercise: models.ExerciseRef{ID: "bench", Name: "Bench Press"},
		Sets:     3,
		Reps:     models.RepRange{Min: 8, Max: 10},
	}}, nil, 90)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AdvanceStep(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LogSet(models.PerformedSet{
		Exercise: models.ExerciseRef{ID: "bench", Name: "Bench Press"},
		SetIndex: 0, Reps: 9, WeightG: 77500,
	}); err != nil {
		t.Fatal(err)
	}
	return m.Session()
}

// TestMirrorRoundTrip verifies a session survives the mirror byte-exact
// where it matters: identity, step position, and logged slots.
func TestMirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	sess := testSession(t)
	m.Update(sess)
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("mirror empty after flush")
	}
	if got.ID != sess.ID {
		t.Errorf("id = %s, want %s", got.ID, sess.ID)
	}
	if got.CurrentStep != 1 {
		t.Errorf("current step = %d, want 1", got.CurrentStep)
	}
	if got.Performed[0] == nil || got.Performed[0].WeightG != 77500 {
		t.Errorf("slot 0 = %+v, want weight 77500", got.Performed[0])
	}
	if got.Performed[1] != nil {
		t.Error("slot 1 should be empty")
	}
	if len(got.Steps) != len(sess.Steps) {
		t.Errorf("steps = %d, want %d", len(got.Steps), len(sess.Steps))
	}
}

// TestMirrorNilRemovesFile verifies an ended session removes the mirror
// file, so a restart after a clean finish resumes nothing.
func TestMirrorNilRemovesFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Update(testSession(t))
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}

	m.Update(nil)
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "session.cbor")); !os.IsNotExist(err) {
		t.Error("mirror file still exists after nil update")
	}
	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil after removal", got)
	}
}

// TestMirrorLoadMissing verifies Load on a fresh dir yields nil, nil.
func TestMirrorLoadMissing(t *testing.T) {
	m, err := NewMirror(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil from missing mirror", got)
	}
}

// TestMirrorDebouncedWrite verifies the writer goroutine lands a write
// on its own (without Flush) shortly after an update.
func TestMirrorDebouncedWrite(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Update(testSession(t))

	path := filepath.Join(dir, "session.cbor")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced write never landed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestMirrorCloseFlushes verifies the last update survives Close even
// inside the debounce window.
func TestMirrorCloseFlushes(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMirror(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	sess := testSession(t)
	m.Update(sess)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	reader, err := NewMirror(dir, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	got, err := reader.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != sess.ID {
		t.Errorf("got %+v after close, want session %s", got, sess.ID)
	}
}
