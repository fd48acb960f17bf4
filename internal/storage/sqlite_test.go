package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// openTestStore migrates and opens a throwaway sqlite history database.
func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	if err := RunMigrations("sqlite://"+path, "../../migrations"); err != nil {
		t.Fatal(err)
	}
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

// testLog builds a completed bench log started at the given time, with
// one matching history row.
func testLog(startedAt time.Time) (models.WorkoutLog, []models.ExerciseHistoryEntry) {
	est := int64(116000)
	log := models.WorkoutLog{
		ID:           uuid.New(),
		TemplateName: "Push Day",
		Status:       models.StatusCompleted,
		TemplateSnapshot: []models.TemplateBlock{{
			Kind:     models.BlockExercise,
			Exercise: models.ExerciseRef{ID: "bench", Name: "Bench Press"},
			Sets:     3,
			Reps:     models.RepRange{Min: 8, Max: 10},
		}},
		PerformedSets: []models.PerformedSet{
			{Exercise: models.ExerciseRef{ID: "bench", Name: "Bench Press"}, WeightG: 100000, Reps: 5},
		},
		StartedAt:   startedAt,
		EndedAt:     startedAt.Add(40 * time.Minute),
		DurationSec: 2400,
		TotalVolume: 500000,
	}
	entries := []models.ExerciseHistoryEntry{{
		LogID:        log.ID,
		ExerciseID:   "bench",
		ExerciseName: "Bench Press",
		PerformedAt:  log.EndedAt,
		BestWeightG:  100000,
		TotalVolume:  500000,
		TotalSets:    1,
		TotalReps:    5,
		Est1RMG:      &est,
	}}
	return log, entries
}

// TestSaveAndGetWorkoutLog verifies the full round trip including the
// JSON-encoded snapshot and performed-set blobs.
func TestSaveAndGetWorkoutLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	log, entries := testLog(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	if err := s.SaveCompletedWorkout(ctx, log, entries); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetWorkoutLog(ctx, log.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != log.ID {
		t.Errorf("id = %s, want %s", got.ID, log.ID)
	}
	if got.TemplateName != "Push Day" || got.Status != models.StatusCompleted {
		t.Errorf("name/status = %s/%s", got.TemplateName, got.Status)
	}
	if got.TotalVolume != 500000 || got.DurationSec != 2400 {
		t.Errorf("volume/duration = %d/%d", got.TotalVolume, got.DurationSec)
	}
	if !got.StartedAt.Equal(log.StartedAt) || !got.EndedAt.Equal(log.EndedAt) {
		t.Errorf("times = %v/%v, want %v/%v", got.StartedAt, got.EndedAt, log.StartedAt, log.EndedAt)
	}
	if len(got.TemplateSnapshot) != 1 || got.TemplateSnapshot[0].Exercise.ID != "bench" {
		t.Errorf("snapshot = %+v", got.TemplateSnapshot)
	}
	if len(got.PerformedSets) != 1 || got.PerformedSets[0].WeightG != 100000 {
		t.Errorf("performed sets = %+v", got.PerformedSets)
	}
	if got.TemplateID != nil {
		t.Errorf("template id = %v, want nil for an ad-hoc workout", *got.TemplateID)
	}
}

// TestGetWorkoutLogNotFound verifies the sentinel for unknown ids.
func TestGetWorkoutLogNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetWorkoutLog(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestListWorkoutLogs verifies range filtering, newest-first ordering,
// and the limit.
func TestListWorkoutLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for day := 0; day < 4; day++ {
		log, entries := testLog(base.AddDate(0, 0, day))
		if err := s.SaveCompletedWorkout(ctx, log, entries); err != nil {
			t.Fatal(err)
		}
	}

	// Days 0–2 fall in the window; day 3 does not (end is exclusive).
	logs, err := s.ListWorkoutLogs(ctx, base, base.AddDate(0, 0, 3), 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].StartedAt.After(logs[i-1].StartedAt) {
			t.Error("logs not in newest-first order")
		}
	}

	logs, err = s.ListWorkoutLogs(ctx, base, base.AddDate(0, 0, 10), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Errorf("limited logs = %d, want 2", len(logs))
	}
}

// TestExerciseHistory verifies the per-exercise view filters by id and
// time range.
func TestExerciseHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		log, entries := testLog(base.AddDate(0, 0, day))
		if err := s.SaveCompletedWorkout(ctx, log, entries); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := s.ExerciseHistory(ctx, "bench", base, base.AddDate(0, 0, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 {
		t.Fatalf("entries = %d, want 3", len(hist))
	}
	e := hist[0]
	if e.ExerciseID != "bench" || e.BestWeightG != 100000 || e.TotalReps != 5 {
		t.Errorf("entry = %+v", e)
	}
	if e.Est1RMG == nil || *e.Est1RMG != 116000 {
		t.Errorf("est 1RM = %v, want 116000", e.Est1RMG)
	}

	hist, err = s.ExerciseHistory(ctx, "squat", base, base.AddDate(0, 0, 30))
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 0 {
		t.Errorf("squat entries = %d, want 0", len(hist))
	}
}

// TestPriorBestsExcludesLog verifies the self-exclusion rule that keeps
// a log from being compared against its own rows.
func TestPriorBestsExcludesLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older, olderEntries := testLog(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	olderEntries[0].BestWeightG = 90000
	olderEntries[0].TotalVolume = 450000
	if err := s.SaveCompletedWorkout(ctx, older, olderEntries); err != nil {
		t.Fatal(err)
	}

	current, currentEntries := testLog(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	if err := s.SaveCompletedWorkout(ctx, current, currentEntries); err != nil {
		t.Fatal(err)
	}

	bests, err := s.PriorBests(ctx, "bench", current.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bests == nil {
		t.Fatal("bests = nil, want the older log's row")
	}
	if bests.Entries != 1 {
		t.Errorf("entries = %d, want 1", bests.Entries)
	}
	if bests.BestWeightG != 90000 || bests.BestVolume != 450000 {
		t.Errorf("bests = %+v, current log leaked into priors", bests)
	}
}

// TestPriorBestsNoHistory verifies nil for an exercise with no prior
// rows at all.
func TestPriorBestsNoHistory(t *testing.T) {
	s := openTestStore(t)

	bests, err := s.PriorBests(context.Background(), "deadlift", uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if bests != nil {
		t.Errorf("bests = %+v, want nil", bests)
	}
}

// TestExerciseRecords verifies the all-time maxima across logs.
func TestExerciseRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, firstEntries := testLog(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	firstEntries[0].BestWeightG = 90000
	firstEntries[0].Est1RMG = nil
	if err := s.SaveCompletedWorkout(ctx, first, firstEntries); err != nil {
		t.Fatal(err)
	}
	second, secondEntries := testLog(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	if err := s.SaveCompletedWorkout(ctx, second, secondEntries); err != nil {
		t.Fatal(err)
	}

	records, err := s.ExerciseRecords(ctx, "bench")
	if err != nil {
		t.Fatal(err)
	}
	if records == nil {
		t.Fatal("records = nil")
	}
	if records.Entries != 2 || records.BestWeightG != 100000 {
		t.Errorf("records = %+v", records)
	}
	if records.Best1RMG == nil || *records.Best1RMG != 116000 {
		t.Errorf("best 1RM = %v, want 116000", records.Best1RMG)
	}

	none, err := s.ExerciseRecords(ctx, "squat")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("squat records = %+v, want nil", none)
	}
}

// TestStats verifies aggregate counters across mixed-status logs.
func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	completed, completedEntries := testLog(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	if err := s.SaveCompletedWorkout(ctx, completed, completedEntries); err != nil {
		t.Fatal(err)
	}
	partial, partialEntries := testLog(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	partial.Status = models.StatusPartial
	partialEntries[0].ExerciseID = "squat"
	partialEntries[0].ExerciseName = "Squat"
	if err := s.SaveCompletedWorkout(ctx, partial, partialEntries); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalLogs != 2 || stats.CompletedLogs != 1 || stats.PartialLogs != 1 {
		t.Errorf("log counts = %d/%d/%d, want 2/1/1", stats.TotalLogs, stats.CompletedLogs, stats.PartialLogs)
	}
	if stats.TotalVolume != 1000000 {
		t.Errorf("total volume = %d, want 1000000", stats.TotalVolume)
	}
	if stats.TotalSets != 2 || stats.DistinctExercises != 2 {
		t.Errorf("sets/exercises = %d/%d, want 2/2", stats.TotalSets, stats.DistinctExercises)
	}
	if stats.EarliestLog == nil || !stats.EarliestLog.Equal(completed.StartedAt) {
		t.Errorf("earliest = %v, want %v", stats.EarliestLog, completed.StartedAt)
	}
	if stats.LatestLog == nil || !stats.LatestLog.Equal(partial.StartedAt) {
		t.Errorf("latest = %v, want %v", stats.LatestLog, partial.StartedAt)
	}
}

// TestStatsEmpty verifies zero-valued stats on an empty database.
func TestStatsEmpty(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalLogs != 0 || stats.TotalVolume != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
	if stats.EarliestLog != nil || stats.LatestLog != nil {
		t.Error("date range should be absent with no logs")
	}
}

// TestListWorkoutLogsSubsecondOrder verifies logs within the same
// second sort correctly: the stored text timestamps must be fixed-width
// or a whole second would sort after its own fractions.
func TestListWorkoutLogsSubsecondOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	whole, wholeEntries := testLog(base)
	if err := s.SaveCompletedWorkout(ctx, whole, wholeEntries); err != nil {
		t.Fatal(err)
	}
	frac, fracEntries := testLog(base.Add(500 * time.Millisecond))
	if err := s.SaveCompletedWorkout(ctx, frac, fracEntries); err != nil {
		t.Fatal(err)
	}

	logs, err := s.ListWorkoutLogs(ctx, base.Add(-time.Minute), base.Add(time.Minute), 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].ID != frac.ID || logs[1].ID != whole.ID {
		t.Error("sub-second logs out of newest-first order")
	}

	// Range predicate splitting the second must cut between them too.
	logs, err = s.ListWorkoutLogs(ctx, base.Add(250*time.Millisecond), base.Add(time.Minute), 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ID != frac.ID {
		t.Errorf("range within a second returned %d logs, want just the later one", len(logs))
	}
}
