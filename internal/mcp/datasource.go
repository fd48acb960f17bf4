package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// DataSource abstracts the history layer for MCP tools. Both storage.Store
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkoutLogs(ctx context.Context, start, end time.Time, limit int) ([]models.WorkoutLog, error)
	ExerciseHistory(ctx context.Context, exerciseID string, start, end time.Time) ([]models.ExerciseHistoryEntry, error)
	ExerciseRecords(ctx context.Context, exerciseID string) (*storage.Bests, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Compile-time check: every storage.Store satisfies DataSource.
var _ DataSource = (storage.Store)(nil)
