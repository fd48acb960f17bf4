package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/completion"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/go-chi/chi/v5"
)

// startRequest is the payload for starting a workout. Blocks arrive
// fully resolved (exercise names included) — the template store and
// name resolver are the client's collaborators, not this core's.
type startRequest struct {
	TemplateID      *string                `json:"template_id,omitempty"`
	Name            string                 `json:"name"`
	Blocks          []models.TemplateBlock `json:"blocks"`
	TemplateRestSec *int                   `json:"template_rest_sec,omitempty"`
}

// sessionView is the API projection of the active session. Timer
// remaining is recomputed from the absolute end time at read time, so
// a poll after any amount of suspension shows the true value.
type sessionView struct {
	ID               string                 `json:"id"`
	TemplateID       *string                `json:"template_id,omitempty"`
	TemplateName     string                 `json:"template_name"`
	State            session.State          `json:"state"`
	CurrentStep      int                    `json:"current_step"`
	Step             models.WorkoutStep     `json:"step"`
	StepCount        int                    `json:"step_count"`
	LoggedSets       int                    `json:"logged_sets"`
	TotalSets        int                    `json:"total_sets"`
	Performed        []*models.PerformedSet `json:"performed"`
	StartedAt        time.Time              `json:"started_at"`
	TimerEndsAt      *time.Time             `json:"timer_ends_at,omitempty"`
	TimerRemainingMS *int64                 `json:"timer_remaining_ms,omitempty"`
}

func (s *Server) view(sess *session.Session) sessionView {
	v := sessionView{
		ID:           sess.ID,
		TemplateID:   sess.TemplateID,
		TemplateName: sess.TemplateName,
		State:        sess.State(),
		CurrentStep:  sess.CurrentStep,
		Step:         sess.Steps[sess.CurrentStep],
		StepCount:    len(sess.Steps),
		LoggedSets:   sess.LoggedCount(),
		TotalSets:    len(sess.Performed),
		Performed:    sess.Performed,
		StartedAt:    sess.StartedAt,
		TimerEndsAt:  sess.TimerEndsAt,
	}
	if remaining, ok := s.timer.Remaining(); ok {
		ms := remaining.Milliseconds()
		v.TimerRemainingMS = &ms
	}
	return v
}

func (s *Server) handleStartWorkout(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	// A previous session's rest timer must not bleed into the new one.
	s.timer.Stop()

	sess, err := s.machine.StartWorkout(req.TemplateID, req.Name, req.Blocks, req.TemplateRestSec, s.globalRestSec)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Event-driven tier-3 save: the session exists on disk from the
	// first moment, not 30 s later.
	s.saver.SaveNow()

	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	sess := s.machine.Session()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleAdvanceStep(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.AdvanceStep()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	// Arriving on a rest step arms the countdown; anything else clears
	// it. The absolute end time is anchored in the session so recovery
	// and reads reconcile against the same fact the actor counts down to.
	step := sess.Steps[sess.CurrentStep]
	if step.Kind == models.StepRest {
		end := s.timer.Start(time.Duration(step.RestSec) * time.Second)
		if err := s.machine.SetTimerEnd(&end); err == nil {
			sess.TimerEndsAt = &end
		}
	} else {
		s.timer.Stop()
	}

	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	var set models.PerformedSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	sess, err := s.machine.LogSet(set)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slot index"})
		return
	}
	var set models.PerformedSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	sess, err := s.machine.UpdateSet(slot, set)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleTimerSkip(w http.ResponseWriter, r *http.Request) {
	s.timer.Skip()
	sess := s.machine.Session()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleTimerAdjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeltaSec int `json:"delta_sec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	end, ok := s.timer.Adjust(time.Duration(req.DeltaSec) * time.Second)
	if ok {
		if err := s.machine.SetTimerEnd(&end); err != nil {
			s.writeSessionError(w, err)
			return
		}
	}
	sess := s.machine.Session()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

// handleTimerSync is the client's foreground/visibility hook: it
// reconciles the countdown against the wall clock (firing completion if
// the end passed while suspended) and triggers an event-driven tier-3
// save, mirroring the background-transition writes of the engine.
func (s *Server) handleTimerSync(w http.ResponseWriter, r *http.Request) {
	remaining, running := s.timer.Reconcile()
	s.saver.SaveNow()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":      running,
		"remaining_ms": remaining.Milliseconds(),
	})
}

func (s *Server) handleFinishEarly(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.EndEarly()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.timer.Stop()
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleCompleteWorkout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.FinalSnapshot()
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	result, err := s.pipeline.Complete(r.Context(), sess)
	if err != nil {
		var persist *completion.PersistError
		if errors.As(err, &persist) {
			// Session stays intact; the client may retry.
			s.log.Error("completion failed", "session_id", sess.ID, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		s.writeSessionError(w, err)
		return
	}

	// One successful completion, then out: resetting here is the guard
	// that makes double-completion impossible. The tier-3 record goes
	// second — with the session already gone, a racing autosave has
	// nothing left to resurrect.
	s.timer.Stop()
	s.machine.Reset()
	if err := s.recovery.Delete(); err != nil {
		s.log.Warn("deleting recovery record failed", "error", err)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDiscardWorkout(w http.ResponseWriter, r *http.Request) {
	s.timer.Stop()
	s.machine.Reset()
	if err := s.recovery.Delete(); err != nil {
		s.log.Warn("deleting recovery record failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSessionError maps state machine errors onto HTTP statuses: a
// missing session is 404, a contract violation (advancing past the
// end, completing nothing) is 409, anything else 400.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionComplete):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
