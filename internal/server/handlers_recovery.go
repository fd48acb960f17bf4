package server

import "net/http"

func (s *Server) handleGetRecovery(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recovery.LoadFresh(s.clk.Now(), s.recoveryMaxAge)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no recoverable session"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleResumeRecovery rebuilds a session from the frozen template
// snapshot in the tier-3 record. The step generator reruns and the
// pointer resets to the start: step position is not recoverable from
// this tier, only the fact that a session existed and its template.
func (s *Server) handleResumeRecovery(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recovery.LoadFresh(s.clk.Now(), s.recoveryMaxAge)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no recoverable session"})
		return
	}

	s.timer.Stop()
	sess, err := s.machine.StartWorkout(rec.TemplateID, rec.TemplateName, rec.TemplateSnapshot, nil, s.globalRestSec)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.saver.SaveNow()

	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleDiscardRecovery(w http.ResponseWriter, r *http.Request) {
	if err := s.recovery.Delete(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
