package recovery

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/liftlog/internal/models"
	_ "modernc.org/sqlite"
)

// Store is the tier-3 persistence layer: a durable, cross-restart
// SQLite database holding the single crash-recovery record. It is
// always local regardless of where workout history lives — its whole
// point is surviving the machine the session runs on.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the recovery database at dir/recovery.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "recovery.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening recovery db: %w", err)
	}
	// One connection: the saver goroutine and the recovery handlers hit
	// this file concurrently, and sqlite returns SQLITE_BUSY instead of
	// queueing a second writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS recovery (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL,
		template_id   TEXT,
		template_name TEXT NOT NULL,
		snapshot      TEXT NOT NULL,
		started_at    TEXT NOT NULL,
		state_tag     TEXT NOT NULL,
		timer_ends_at TEXT,
		saved_at      TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating recovery table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save overwrites the singleton record. Last write wins; every write is
// a full self-consistent snapshot, so overlapping periodic and
// event-driven saves are harmless.
func (s *Store) Save(rec models.CrashRecoveryRecord) error {
	snapshot, err := json.Marshal(rec.TemplateSnapshot)
	if err != nil {
		return fmt.Errorf("encoding template snapshot: %w", err)
	}

	var templateID sql.NullString
	if rec.TemplateID != nil {
		templateID = sql.NullString{String: *rec.TemplateID, Valid: true}
	}
	var timerEnds sql.NullString
	if rec.TimerEndsAt != nil {
		timerEnds = sql.NullString{String: rec.TimerEndsAt.Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO recovery
		 (id, session_id, template_id, template_name, snapshot, started_at, state_tag, timer_ends_at, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		models.RecoveryKey, rec.SessionID, templateID, rec.TemplateName, string(snapshot),
		rec.StartedAt.Format(time.RFC3339Nano), rec.StateTag, timerEnds,
		rec.SavedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving recovery record: %w", err)
	}
	return nil
}

// Load returns the stored record, or nil when none exists.
func (s *Store) Load() (*models.CrashRecoveryRecord, error) {
	var (
		rec        models.CrashRecoveryRecord
		templateID sql.NullString
		snapshot   string
		startedAt  string
		timerEnds  sql.NullString
		savedAt    string
	)
	err := s.db.QueryRow(
		`SELECT session_id, template_id, template_name, snapshot, started_at, state_tag, timer_ends_at, saved_at
		 FROM recovery WHERE id = ?`, models.RecoveryKey,
	).Scan(&rec.SessionID, &templateID, &rec.TemplateName, &snapshot, &startedAt, &rec.StateTag, &timerEnds, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading recovery record: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &rec.TemplateSnapshot); err != nil {
		return nil, fmt.Errorf("decoding template snapshot: %w", err)
	}
	if templateID.Valid {
		rec.TemplateID = &templateID.String
	}
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if rec.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return nil, fmt.Errorf("parsing saved_at: %w", err)
	}
	if timerEnds.Valid {
		t, err := time.Parse(time.RFC3339Nano, timerEnds.String)
		if err != nil {
			return nil, fmt.Errorf("parsing timer_ends_at: %w", err)
		}
		rec.TimerEndsAt = &t
	}
	return &rec, nil
}

// LoadFresh returns the record only if it is younger than maxAge at
// now. Stale records are discarded unread — their session is too old
// to be worth offering back to the user.
func (s *Store) LoadFresh(now time.Time, maxAge time.Duration) (*models.CrashRecoveryRecord, error) {
	rec, err := s.Load()
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Expired(now, maxAge) {
		if err := s.Delete(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return rec, nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *Store) Delete() error {
	if _, err := s.db.Exec(`DELETE FROM recovery WHERE id = ?`, models.RecoveryKey); err != nil {
		return fmt.Errorf("deleting recovery record: %w", err)
	}
	return nil
}

// Close closes the recovery database.
func (s *Store) Close() error {
	return s.db.Close()
}
