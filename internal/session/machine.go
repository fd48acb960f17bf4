package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNoActiveSession is returned by actions that require a running
	// session when none exists. Completing without a session is a logic
	// error at the call site, not a user-visible condition.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionComplete is returned when advancing past the terminal
	// step. The complete step is always the last reachable index.
	ErrSessionComplete = errors.New("session already at complete step")

	// ErrNoSuchStep is returned when a logged set does not correspond
	// to any exercise step of the session.
	ErrNoSuchStep = errors.New("set does not match any exercise step")
)

// State is the coarse session state derived from the current step.
type State string

const (
	StateIdle       State = "idle"
	StateExercising State = "exercising"
	StateResting    State = "resting"
	StateRecap      State = "recap"
	StateComplete   State = "complete"
)

// Session is the live mutable aggregate for one workout. Performed has
// one slot per exercise step, nil until logged. TimerEndsAt is an
// absolute timestamp, never a remaining duration: everything temporal
// recomputes against the wall clock.
type Session struct {
	ID           string                 `cbor:"1,keyasint"`
	TemplateID   *string                `cbor:"2,keyasint,omitempty"`
	TemplateName string                 `cbor:"3,keyasint"`
	Snapshot     []models.TemplateBlock `cbor:"4,keyasint"`
	TemplateRest *int                   `cbor:"5,keyasint,omitempty"`
	Steps        []models.WorkoutStep   `cbor:"6,keyasint"`
	CurrentStep  int                    `cbor:"7,keyasint"`
	TimerEndsAt  *time.Time             `cbor:"8,keyasint,omitempty"`
	StartedAt    time.Time              `cbor:"9,keyasint"`
	Performed    []*models.PerformedSet `cbor:"10,keyasint"`
}

// Clone returns a fully independent copy, safe to hand to another
// goroutine (the tier-2 mirror writer) while the original keeps mutating.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Snapshot = models.CloneBlocks(s.Snapshot)
	c.Steps = append([]models.WorkoutStep(nil), s.Steps...)
	c.Performed = make([]*models.PerformedSet, len(s.Performed))
	for i, p := range s.Performed {
		if p != nil {
			set := *p
			c.Performed[i] = &set
		}
	}
	if s.TimerEndsAt != nil {
		t := *s.TimerEndsAt
		c.TimerEndsAt = &t
	}
	if s.TemplateID != nil {
		id := *s.TemplateID
		c.TemplateID = &id
	}
	if s.TemplateRest != nil {
		r := *s.TemplateRest
		c.TemplateRest = &r
	}
	return &c
}

// State derives the coarse state from the current step and logged slots.
func (s *Session) State() State {
	if s == nil {
		return StateIdle
	}
	switch s.Steps[s.CurrentStep].Kind {
	case models.StepRest:
		return StateResting
	case models.StepComplete:
		if s.LoggedCount() < len(s.Performed) {
			return StateRecap
		}
		return StateComplete
	default:
		return StateExercising
	}
}

// LoggedCount returns how many performed-set slots are filled.
func (s *Session) LoggedCount() int {
	n := 0
	for _, p := range s.Performed {
		if p != nil {
			n++
		}
	}
	return n
}

// Machine owns the single active session and is its only writer. All
// actions are synchronous and serialized; persistence and timers hang
// off the OnChange observer instead of blocking the mutation path.
// Construct one per composition root (or per test).
type Machine struct {
	clk clock.Clock

	mu       sync.Mutex
	sess     *Session
	onChange func(*Session)
}

// NewMachine creates an idle machine.
func NewMachine(clk clock.Clock) *Machine {
	return &Machine{clk: clk}
}

// SetOnChange registers the post-mutation hook. It is invoked with a
// deep copy of the session after every successful action, and with nil
// after Reset. The hook runs synchronously; keep it cheap and push slow
// work (disk writes) onto another goroutine.
func (m *Machine) SetOnChange(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// StartWorkout begins a new session, unconditionally replacing any prior
// one. Blocks are validated and deep-copied so the session is immune to
// later template edits.
func (m *Machine) StartWorkout(templateID *string, name string, blocks []models.TemplateBlock, templateRest *int, globalRest int) (*Session, error) {
	if len(blocks) == 0 {
		return nil, errors.New("workout has no blocks")
	}
	for i, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}

	snapshot := models.CloneBlocks(blocks)
	steps := GenerateSteps(snapshot, templateRest, globalRest)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &Session{
		ID:           uuid.NewString(),
		TemplateID:   templateID,
		TemplateName: name,
		Snapshot:     snapshot,
		TemplateRest: templateRest,
		Steps:        steps,
		CurrentStep:  0,
		StartedAt:    m.clk.Now(),
		Performed:    make([]*models.PerformedSet, models.CountExerciseSteps(steps)),
	}
	return m.notify(), nil
}

// Restore installs a previously mirrored session verbatim (tier-2
// resume). The caller owns validity checks; the machine trusts the
// snapshot because it only ever wrote self-consistent ones.
func (m *Machine) Restore(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = s.Clone()
	m.notify()
}

// AdvanceStep moves the pointer forward by one and clears any rest
// timer. It never skips and never decrements; advancing past the
// terminal step is refused.
func (m *Machine) AdvanceStep() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, ErrNoActiveSession
	}
	if m.sess.CurrentStep >= len(m.sess.Steps)-1 {
		return nil, ErrSessionComplete
	}
	m.sess.CurrentStep++
	m.sess.TimerEndsAt = nil
	return m.notify(), nil
}

// SetTimerEnd records the absolute expiry of the active rest timer, or
// clears it when nil. This is the anchor the timer engine reconciles
// against after suspension.
func (m *Machine) SetTimerEnd(t *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ErrNoActiveSession
	}
	m.sess.TimerEndsAt = t
	m.notify()
	return nil
}

// LogSet records a performed set into the slot identified by the set's
// block index, set index, and exercise. Logging the same slot again
// overwrites it; slots stay mutable until completion.
func (m *Machine) LogSet(set models.PerformedSet) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, ErrNoActiveSession
	}
	slot := -1
	ordinal := 0
	for _, st := range m.sess.Steps {
		if st.Kind != models.StepExercise {
			continue
		}
		if st.BlockIndex == set.BlockIndex && st.SetIndex == set.SetIndex && st.Exercise.ID == set.Exercise.ID {
			slot = ordinal
			break
		}
		ordinal++
	}
	if slot < 0 {
		return nil, ErrNoSuchStep
	}
	m.sess.Performed[slot] = &set
	return m.notify(), nil
}

// UpdateSet overwrites an explicit performed-set slot. Backs the "apply
// to remaining sets" and "same weight" affordances, which rewrite slots
// the user never visited directly.
func (m *Machine) UpdateSet(slot int, set models.PerformedSet) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, ErrNoActiveSession
	}
	if slot < 0 || slot >= len(m.sess.Performed) {
		return nil, fmt.Errorf("%w: slot %d of %d", ErrNoSuchStep, slot, len(m.sess.Performed))
	}
	m.sess.Performed[slot] = &set
	return m.notify(), nil
}

// EndEarly jumps straight to the complete step without visiting the
// remaining steps. The escape hatch for partial sessions.
func (m *Machine) EndEarly() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, ErrNoActiveSession
	}
	m.sess.CurrentStep = len(m.sess.Steps) - 1
	m.sess.TimerEndsAt = nil
	return m.notify(), nil
}

// Reset returns to the idle state. Safe from any state, including
// mid-timer; the caller is responsible for stopping the timer engine.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	m.notify()
}

// Session returns a deep copy of the current session, or nil when idle.
func (m *Machine) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Clone()
}

// FinalSnapshot returns the session for the completion pipeline. Unlike
// Session it fails loudly when no session exists: completing without
// one means the caller lost track of state.
func (m *Machine) FinalSnapshot() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.StartedAt.IsZero() {
		return nil, ErrNoActiveSession
	}
	return m.sess.Clone(), nil
}

// notify invokes the observer with a deep copy. Called under m.mu so
// observers see states in mutation order.
func (m *Machine) notify() *Session {
	c := m.sess.Clone()
	if m.onChange != nil {
		m.onChange(c)
	}
	return c
}
