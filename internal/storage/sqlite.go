package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite is the default, purely local history store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the history database at the given path. Run
// migrations first via RunMigrations with a sqlite:// DSN on the same
// path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// Serialize access: concurrent readers and the completion writer
	// otherwise race to SQLITE_BUSY on the same file.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging history db: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() {
	s.db.Close()
}

// SaveCompletedWorkout writes the log and its history rows in one
// transaction.
func (s *SQLite) SaveCompletedWorkout(ctx context.Context, log models.WorkoutLog, entries []models.ExerciseHistoryEntry) error {
	snapshot, sets, err := encodeLogBlobs(log)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning completion tx: %w", err)
	}
	defer tx.Rollback()

	var templateID sql.NullString
	if log.TemplateID != nil {
		templateID = sql.NullString{String: *log.TemplateID, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workout_logs
		 (id, template_id, template_name, status, template_snapshot, performed_sets,
		  started_at, ended_at, duration_sec, total_volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID.String(), templateID, log.TemplateName, string(log.Status), snapshot, sets,
		sqliteTime(log.StartedAt), sqliteTime(log.EndedAt), log.DurationSec, log.TotalVolume)
	if err != nil {
		return fmt.Errorf("inserting workout log: %w", err)
	}

	for _, e := range entries {
		var est sql.NullInt64
		if e.Est1RMG != nil {
			est = sql.NullInt64{Int64: *e.Est1RMG, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exercise_history
			 (log_id, exercise_id, exercise_name, performed_at, best_weight_g,
			  total_volume, total_sets, total_reps, est_1rm_g)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.LogID.String(), e.ExerciseID, e.ExerciseName, sqliteTime(e.PerformedAt),
			e.BestWeightG, e.TotalVolume, e.TotalSets, e.TotalReps, est)
		if err != nil {
			return fmt.Errorf("inserting history entry for %s: %w", e.ExerciseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing completion tx: %w", err)
	}
	return nil
}

// GetWorkoutLog retrieves a single log by id.
func (s *SQLite) GetWorkoutLog(ctx context.Context, id uuid.UUID) (*models.WorkoutLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, template_id, template_name, status, template_snapshot, performed_sets,
		        started_at, ended_at, duration_sec, total_volume
		 FROM workout_logs WHERE id = ?`, id.String())
	log, err := scanSQLiteLog(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workout log: %w", err)
	}
	return log, nil
}

// ListWorkoutLogs retrieves logs started in [start, end), newest first.
func (s *SQLite) ListWorkoutLogs(ctx context.Context, start, end time.Time, limit int) ([]models.WorkoutLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, template_name, status, template_snapshot, performed_sets,
		        started_at, ended_at, duration_sec, total_volume
		 FROM workout_logs
		 WHERE started_at >= ? AND started_at < ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		sqliteTime(start), sqliteTime(end), limit)
	if err != nil {
		return nil, fmt.Errorf("querying workout logs: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutLog
	for rows.Next() {
		log, err := scanSQLiteLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning workout log: %w", err)
		}
		result = append(result, *log)
	}
	return result, rows.Err()
}

// ExerciseHistory retrieves history rows for one exercise in [start, end).
func (s *SQLite) ExerciseHistory(ctx context.Context, exerciseID string, start, end time.Time) ([]models.ExerciseHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, exercise_id, exercise_name, performed_at, best_weight_g,
		        total_volume, total_sets, total_reps, est_1rm_g
		 FROM exercise_history
		 WHERE exercise_id = ? AND performed_at >= ? AND performed_at < ?
		 ORDER BY performed_at DESC`,
		exerciseID, sqliteTime(start), sqliteTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying exercise history: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseHistoryEntry
	for rows.Next() {
		var (
			e      models.ExerciseHistoryEntry
			logID  string
			perfAt string
			est    sql.NullInt64
		)
		if err := rows.Scan(&logID, &e.ExerciseID, &e.ExerciseName, &perfAt,
			&e.BestWeightG, &e.TotalVolume, &e.TotalSets, &e.TotalReps, &est); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if e.LogID, err = uuid.Parse(logID); err != nil {
			return nil, fmt.Errorf("parsing log id: %w", err)
		}
		if e.PerformedAt, err = time.Parse(time.RFC3339Nano, perfAt); err != nil {
			return nil, fmt.Errorf("parsing performed_at: %w", err)
		}
		if est.Valid {
			e.Est1RMG = &est.Int64
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// PriorBests aggregates history for an exercise, excluding the given
// log's own rows.
func (s *SQLite) PriorBests(ctx context.Context, exerciseID string, excludeLogID uuid.UUID) (*Bests, error) {
	return s.bests(ctx,
		`SELECT COUNT(*), COALESCE(MAX(best_weight_g), 0), COALESCE(MAX(total_volume), 0), MAX(est_1rm_g)
		 FROM exercise_history WHERE exercise_id = ? AND log_id <> ?`,
		exerciseID, excludeLogID.String())
}

// ExerciseRecords returns the current bests for an exercise.
func (s *SQLite) ExerciseRecords(ctx context.Context, exerciseID string) (*Bests, error) {
	return s.bests(ctx,
		`SELECT COUNT(*), COALESCE(MAX(best_weight_g), 0), COALESCE(MAX(total_volume), 0), MAX(est_1rm_g)
		 FROM exercise_history WHERE exercise_id = ?`,
		exerciseID)
}

func (s *SQLite) bests(ctx context.Context, query string, args ...any) (*Bests, error) {
	var (
		b   Bests
		est sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&b.Entries, &b.BestWeightG, &b.BestVolume, &est)
	if err != nil {
		return nil, fmt.Errorf("querying bests: %w", err)
	}
	if b.Entries == 0 {
		return nil, nil
	}
	if est.Valid {
		b.Best1RMG = &est.Int64
	}
	return &b, nil
}

// Stats returns aggregate statistics over all recorded history.
func (s *SQLite) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(total_volume), 0)
		 FROM workout_logs`,
	).Scan(&stats.TotalLogs, &stats.CompletedLogs, &stats.PartialLogs, &stats.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("counting logs: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_sets), 0), COUNT(DISTINCT exercise_id) FROM exercise_history`,
	).Scan(&stats.TotalSets, &stats.DistinctExercises)
	if err != nil {
		return nil, fmt.Errorf("counting history: %w", err)
	}

	var earliest, latest sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(started_at), MAX(started_at) FROM workout_logs`,
	).Scan(&earliest, &latest)
	if err != nil {
		return nil, fmt.Errorf("querying log date range: %w", err)
	}
	if earliest.Valid {
		t, err := time.Parse(time.RFC3339Nano, earliest.String)
		if err != nil {
			return nil, fmt.Errorf("parsing earliest log time: %w", err)
		}
		stats.EarliestLog = &t
	}
	if latest.Valid {
		t, err := time.Parse(time.RFC3339Nano, latest.String)
		if err != nil {
			return nil, fmt.Errorf("parsing latest log time: %w", err)
		}
		stats.LatestLog = &t
	}

	return stats, nil
}

// sqliteTime formats timestamps as sortable RFC 3339 UTC strings, the
// storage form for every time column in the sqlite backend. The
// fractional part is fixed-width: RFC3339Nano trims trailing zeros,
// which breaks lexicographic ordering within a second.
func sqliteTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// encodeLogBlobs JSON-encodes the frozen snapshot and performed sets.
func encodeLogBlobs(log models.WorkoutLog) (snapshot, sets string, err error) {
	sb, err := json.Marshal(log.TemplateSnapshot)
	if err != nil {
		return "", "", fmt.Errorf("encoding template snapshot: %w", err)
	}
	pb, err := json.Marshal(log.PerformedSets)
	if err != nil {
		return "", "", fmt.Errorf("encoding performed sets: %w", err)
	}
	return string(sb), string(pb), nil
}

// scanSQLiteLog scans one workout_logs row via the given scan func.
func scanSQLiteLog(scan func(...any) error) (*models.WorkoutLog, error) {
	var (
		log        models.WorkoutLog
		id         string
		templateID sql.NullString
		status     string
		snapshot   string
		sets       string
		startedAt  string
		endedAt    string
	)
	err := scan(&id, &templateID, &log.TemplateName, &status, &snapshot, &sets,
		&startedAt, &endedAt, &log.DurationSec, &log.TotalVolume)
	if err != nil {
		return nil, err
	}
	if log.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing log id: %w", err)
	}
	if templateID.Valid {
		log.TemplateID = &templateID.String
	}
	log.Status = models.LogStatus(status)
	if err := json.Unmarshal([]byte(snapshot), &log.TemplateSnapshot); err != nil {
		return nil, fmt.Errorf("decoding template snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(sets), &log.PerformedSets); err != nil {
		return nil, fmt.Errorf("decoding performed sets: %w", err)
	}
	if log.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if log.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return nil, fmt.Errorf("parsing ended_at: %w", err)
	}
	return &log, nil
}
