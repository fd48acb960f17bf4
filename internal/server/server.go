package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/completion"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/timer"
	"github.com/go-chi/chi/v5"
)

// Server owns the single active session and everything attached to it:
// the state machine, the rest timer, both crash-recovery tiers, and the
// completion pipeline. History endpoints read only committed output.
type Server struct {
	machine  *session.Machine
	timer    *timer.Engine
	mirror   *recovery.Mirror
	recovery *recovery.Store
	saver    *recovery.Saver
	pipeline *completion.Pipeline
	store    storage.Store
	clk      clock.Clock
	log      *slog.Logger

	globalRestSec  int
	recoveryMaxAge time.Duration
	apiKey         string

	hub      *eventHub
	pumpDone chan struct{}
	router   chi.Router
}

// Options configures a Server.
type Options struct {
	Store          storage.Store
	Mirror         *recovery.Mirror
	Recovery       *recovery.Store
	Clock          clock.Clock
	Evaluator      completion.AchievementEvaluator
	GlobalRestSec  int
	RecoveryMaxAge time.Duration
	SaveInterval   time.Duration
	APIKey         string
	Log            *slog.Logger
}

// New wires the execution engine and configures all routes. Call Start
// to resume mirrored state and begin autosaving, and Close on shutdown.
func New(opts Options) *Server {
	s := &Server{
		machine:        session.NewMachine(opts.Clock),
		mirror:         opts.Mirror,
		recovery:       opts.Recovery,
		store:          opts.Store,
		clk:            opts.Clock,
		log:            opts.Log,
		globalRestSec:  opts.GlobalRestSec,
		recoveryMaxAge: opts.RecoveryMaxAge,
		apiKey:         opts.APIKey,
		hub:            newEventHub(),
		pumpDone:       make(chan struct{}),
		router:         chi.NewRouter(),
	}
	s.timer = timer.New(opts.Clock, s.onRestComplete)
	s.pipeline = completion.New(opts.Store, opts.Clock, opts.Evaluator, opts.Log)
	s.saver = recovery.NewSaver(s.machine, opts.Recovery, opts.Clock, opts.SaveInterval, opts.Log)

	// Tier-2 mirroring rides the post-mutation hook: every state change
	// schedules a rewrite without blocking the action itself.
	if s.mirror != nil {
		s.machine.SetOnChange(s.mirror.Update)
	}

	s.routes()
	return s
}

// Start resumes a mirrored session if one exists (tier-2, same data
// dir, exact step position preserved) and starts the periodic tier-3
// saver. A fresh tier-3 record is only offered over the recovery
// endpoints, never auto-resumed.
func (s *Server) Start() {
	if s.mirror != nil {
		if sess, err := s.mirror.Load(); err != nil {
			s.log.Warn("session mirror load failed", "error", err)
		} else if sess != nil {
			s.machine.Restore(sess)
			if sess.TimerEndsAt != nil {
				if sess.TimerEndsAt.After(s.clk.Now()) {
					s.timer.StartUntil(*sess.TimerEndsAt)
				} else {
					// The rest expired while the process was down;
					// drop the anchor so reads do not report a
					// countdown that will never fire.
					if err := s.machine.SetTimerEnd(nil); err != nil {
						s.log.Warn("clearing stale timer anchor failed", "error", err)
					}
				}
			}
			s.log.Info("session restored from mirror", "session_id", sess.ID, "step", sess.CurrentStep)
		}
	}
	s.saver.Run()
	go s.runEventPump(s.pumpDone)
}

// Close stops background work and flushes the mirror.
func (s *Server) Close() {
	close(s.pumpDone)
	s.saver.Stop()
	s.timer.Close()
	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			s.log.Warn("session mirror flush failed", "error", err)
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Active session endpoints (API key required when configured)
	s.router.Route("/api/v1/workout", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}
		r.Post("/start", s.handleStartWorkout)
		r.Get("/", s.handleGetWorkout)
		r.Delete("/", s.handleDiscardWorkout)
		r.Post("/advance", s.handleAdvanceStep)
		r.Post("/sets", s.handleLogSet)
		r.Put("/sets/{index}", s.handleUpdateSet)
		r.Post("/timer/skip", s.handleTimerSkip)
		r.Post("/timer/adjust", s.handleTimerAdjust)
		r.Post("/timer/sync", s.handleTimerSync)
		r.Post("/finish-early", s.handleFinishEarly)
		r.Post("/complete", s.handleCompleteWorkout)
		r.Get("/events", s.handleEvents)
	})

	// Crash recovery endpoints
	s.router.Route("/api/v1/recovery", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}
		r.Get("/", s.handleGetRecovery)
		r.Post("/resume", s.handleResumeRecovery)
		r.Delete("/", s.handleDiscardRecovery)
	})

	// History endpoints (read-only, no auth — tsnet handles access)
	s.router.Get("/api/v1/logs", s.handleListLogs)
	s.router.Get("/api/v1/logs/{id}", s.handleGetLog)
	s.router.Get("/api/v1/exercises/{id}/history", s.handleExerciseHistory)
	s.router.Get("/api/v1/exercises/{id}/records", s.handleExerciseRecords)
	s.router.Get("/api/v1/stats", s.handleStats)
}

// onRestComplete runs when a countdown expires (actor tick, skip, or
// reconcile). The step pointer never moves here — transitions are
// explicit actions — but the session's timer anchor is cleared so state
// reads stop reporting a rest in flight.
func (s *Server) onRestComplete() {
	if err := s.machine.SetTimerEnd(nil); err != nil {
		return // session already gone, nothing to clear
	}
}
