package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the history store for installs backed by a PostgreSQL
// server instead of the local SQLite file.
type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres creates a Postgres store with a connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.Pool.Close()
}

// SaveCompletedWorkout writes the log and its history rows in one
// transaction.
func (p *Postgres) SaveCompletedWorkout(ctx context.Context, log models.WorkoutLog, entries []models.ExerciseHistoryEntry) error {
	snapshot, sets, err := encodeLogBlobs(log)
	if err != nil {
		return err
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning completion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workout_logs
		 (id, template_id, template_name, status, template_snapshot, performed_sets,
		  started_at, ended_at, duration_sec, total_volume)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID.String(), log.TemplateID, log.TemplateName, string(log.Status), snapshot, sets,
		log.StartedAt, log.EndedAt, log.DurationSec, log.TotalVolume)
	if err != nil {
		return fmt.Errorf("inserting workout log: %w", err)
	}

	for _, e := range entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO exercise_history
			 (log_id, exercise_id, exercise_name, performed_at, best_weight_g,
			  total_volume, total_sets, total_reps, est_1rm_g)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.LogID.String(), e.ExerciseID, e.ExerciseName, e.PerformedAt,
			e.BestWeightG, e.TotalVolume, e.TotalSets, e.TotalReps, e.Est1RMG)
		if err != nil {
			return fmt.Errorf("inserting history entry for %s: %w", e.ExerciseID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing completion tx: %w", err)
	}
	return nil
}

// GetWorkoutLog retrieves a single log by id.
func (p *Postgres) GetWorkoutLog(ctx context.Context, id uuid.UUID) (*models.WorkoutLog, error) {
	row := p.Pool.QueryRow(ctx,
		`SELECT id, template_id, template_name, status, template_snapshot, performed_sets,
		        started_at, ended_at, duration_sec, total_volume
		 FROM workout_logs WHERE id = $1`, id.String())
	log, err := scanPostgresLog(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workout log: %w", err)
	}
	return log, nil
}

// ListWorkoutLogs retrieves logs started in [start, end), newest first.
func (p *Postgres) ListWorkoutLogs(ctx context.Context, start, end time.Time, limit int) ([]models.WorkoutLog, error) {
	rows, err := p.Pool.Query(ctx,
		`SELECT id, template_id, template_name, status, template_snapshot, performed_sets,
		        started_at, ended_at, duration_sec, total_volume
		 FROM workout_logs
		 WHERE started_at >= $1 AND started_at < $2
		 ORDER BY started_at DESC
		 LIMIT $3`,
		start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("querying workout logs: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutLog
	for rows.Next() {
		log, err := scanPostgresLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning workout log: %w", err)
		}
		result = append(result, *log)
	}
	return result, rows.Err()
}

// ExerciseHistory retrieves history rows for one exercise in [start, end).
func (p *Postgres) ExerciseHistory(ctx context.Context, exerciseID string, start, end time.Time) ([]models.ExerciseHistoryEntry, error) {
	rows, err := p.Pool.Query(ctx,
		`SELECT log_id, exercise_id, exercise_name, performed_at, best_weight_g,
		        total_volume, total_sets, total_reps, est_1rm_g
		 FROM exercise_history
		 WHERE exercise_id = $1 AND performed_at >= $2 AND performed_at < $3
		 ORDER BY performed_at DESC`,
		exerciseID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying exercise history: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseHistoryEntry
	for rows.Next() {
		var (
			e     models.ExerciseHistoryEntry
			logID string
		)
		if err := rows.Scan(&logID, &e.ExerciseID, &e.ExerciseName, &e.PerformedAt,
			&e.BestWeightG, &e.TotalVolume, &e.TotalSets, &e.TotalReps, &e.Est1RMG); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		if e.LogID, err = uuid.Parse(logID); err != nil {
			return nil, fmt.Errorf("parsing log id: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// PriorBests aggregates history for an exercise, excluding the given
// log's own rows.
func (p *Postgres) PriorBests(ctx context.Context, exerciseID string, excludeLogID uuid.UUID) (*Bests, error) {
	return p.bests(ctx,
		`SELECT COUNT(*), COALESCE(MAX(best_weight_g), 0), COALESCE(MAX(total_volume), 0), MAX(est_1rm_g)
		 FROM exercise_history WHERE exercise_id = $1 AND log_id <> $2`,
		exerciseID, excludeLogID.String())
}

// ExerciseRecords returns the current bests for an exercise.
func (p *Postgres) ExerciseRecords(ctx context.Context, exerciseID string) (*Bests, error) {
	return p.bests(ctx,
		`SELECT COUNT(*), COALESCE(MAX(best_weight_g), 0), COALESCE(MAX(total_volume), 0), MAX(est_1rm_g)
		 FROM exercise_history WHERE exercise_id = $1`,
		exerciseID)
}

func (p *Postgres) bests(ctx context.Context, query string, args ...any) (*Bests, error) {
	var b Bests
	err := p.Pool.QueryRow(ctx, query, args...).Scan(&b.Entries, &b.BestWeightG, &b.BestVolume, &b.Best1RMG)
	if err != nil {
		return nil, fmt.Errorf("querying bests: %w", err)
	}
	if b.Entries == 0 {
		return nil, nil
	}
	return &b, nil
}

// Stats returns aggregate statistics over all recorded history.
func (p *Postgres) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := p.Pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(total_volume), 0)
		 FROM workout_logs`,
	).Scan(&stats.TotalLogs, &stats.CompletedLogs, &stats.PartialLogs, &stats.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("counting logs: %w", err)
	}

	err = p.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_sets), 0), COUNT(DISTINCT exercise_id) FROM exercise_history`,
	).Scan(&stats.TotalSets, &stats.DistinctExercises)
	if err != nil {
		return nil, fmt.Errorf("counting history: %w", err)
	}

	err = p.Pool.QueryRow(ctx,
		`SELECT MIN(started_at), MAX(started_at) FROM workout_logs`,
	).Scan(&stats.EarliestLog, &stats.LatestLog)
	if err != nil {
		return nil, fmt.Errorf("querying log date range: %w", err)
	}

	return stats, nil
}

// scanPostgresLog scans one workout_logs row via the given scan func.
func scanPostgresLog(scan func(...any) error) (*models.WorkoutLog, error) {
	var (
		log      models.WorkoutLog
		id       string
		status   string
		snapshot string
		sets     string
	)
	err := scan(&id, &log.TemplateID, &log.TemplateName, &status, &snapshot, &sets,
		&log.StartedAt, &log.EndedAt, &log.DurationSec, &log.TotalVolume)
	if err != nil {
		return nil, err
	}
	if log.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing log id: %w", err)
	}
	log.Status = models.LogStatus(status)
	if err := json.Unmarshal([]byte(snapshot), &log.TemplateSnapshot); err != nil {
		return nil, fmt.Errorf("decoding template snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(sets), &log.PerformedSets); err != nil {
		return nil, fmt.Errorf("decoding performed sets: %w", err)
	}
	return &log, nil
}
