package models

import "time"

// RecoveryKey is the fixed key of the singleton crash-recovery record.
const RecoveryKey = "recovery"

// CrashRecoveryRecord is the minimal durable snapshot written to the
// tier-3 store during an active session. It carries only enough to
// reconstruct a fresh session from the frozen template snapshot; the
// in-session step position is deliberately not recoverable from here.
// The record is overwritten on every save and deleted on completion.
type CrashRecoveryRecord struct {
	SessionID        string          `json:"session_id"`
	TemplateID       *string         `json:"template_id,omitempty"`
	TemplateName     string          `json:"template_name"`
	TemplateSnapshot []TemplateBlock `json:"template_snapshot"`
	StartedAt        time.Time       `json:"started_at"`
	StateTag         string          `json:"state_tag"`
	TimerEndsAt      *time.Time      `json:"timer_ends_at,omitempty"`
	SavedAt          time.Time       `json:"saved_at"`
}

// Expired reports whether the record is older than maxAge at the given
// time. Expired records are treated as absent and discarded unread.
func (r CrashRecoveryRecord) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.SavedAt) >= maxAge
}
