package recovery

import (
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

// DefaultSaveInterval is how often an active session is written to the
// tier-3 store.
const DefaultSaveInterval = 30 * time.Second

// Saver periodically writes the minimal crash-recovery record for the
// active session. Writes are best-effort: a failure is logged, never
// surfaced, and never blocks a session action. SaveNow exists for
// event-driven saves (client foreground/background transitions).
type Saver struct {
	machine  *session.Machine
	store    *Store
	clk      clock.Clock
	log      *slog.Logger
	interval time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSaver creates a saver; call Run to start the periodic loop.
func NewSaver(machine *session.Machine, store *Store, clk clock.Clock, interval time.Duration, log *slog.Logger) *Saver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &Saver{
		machine:  machine,
		store:    store,
		clk:      clk,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run starts the periodic save loop on its own goroutine.
func (s *Saver) Run() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := s.clk.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.SaveNow()
			}
		}
	}()
}

// SaveNow writes the current session to the tier-3 store immediately.
// A no-op when no session is active.
func (s *Saver) SaveNow() {
	sess := s.machine.Session()
	if sess == nil {
		return
	}
	rec := RecordFor(sess, s.clk.Now())
	if err := s.store.Save(rec); err != nil {
		s.log.Warn("crash recovery save failed", "session_id", sess.ID, "error", err)
	}
}

// Stop halts the periodic loop.
func (s *Saver) Stop() {
	close(s.done)
	s.wg.Wait()
}

// RecordFor builds the tier-3 record from a session snapshot. Only the
// template snapshot and coarse state survive; step position does not.
func RecordFor(sess *session.Session, now time.Time) models.CrashRecoveryRecord {
	return models.CrashRecoveryRecord{
		SessionID:        sess.ID,
		TemplateID:       sess.TemplateID,
		TemplateName:     sess.TemplateName,
		TemplateSnapshot: sess.Snapshot,
		StartedAt:        sess.StartedAt,
		StateTag:         string(sess.State()),
		TimerEndsAt:      sess.TimerEndsAt,
		SavedAt:          now,
	}
}
