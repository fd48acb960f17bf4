// Package timer implements the rest countdown as a background actor
// plus a foreground adapter. The one durable fact is an absolute expiry
// timestamp; every tick recomputes remaining = end − now, so the
// displayed time can never drift from the wall clock no matter how long
// the process was suspended. Counting ticks is deliberately impossible
// here: suspension would silently stretch them.
package timer

import (
	"sync"
	"time"

	"github.com/claude/liftlog/internal/clock"
)

// TickInterval is the actor's cadence while a countdown is running.
const TickInterval = 100 * time.Millisecond

// EventKind discriminates actor output messages.
type EventKind string

const (
	EventTick     EventKind = "tick"
	EventComplete EventKind = "complete"
)

// Event is an actor output message. Remaining is meaningful for ticks.
type Event struct {
	Kind      EventKind
	Remaining time.Duration
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdAdjust
)

type command struct {
	kind cmdKind
	end  time.Time
}

// Engine is the foreground adapter. It keeps its own copy of the
// absolute end time so Remaining and Reconcile work even if the actor
// goroutine is starved; the actor keeps a second copy and never shares
// memory with this side. Commands flow in over a channel, tick and
// complete events flow out over another.
type Engine struct {
	clk        clock.Clock
	cmds       chan command
	events     chan Event
	done       chan struct{}
	onComplete func()

	mu  sync.Mutex
	end time.Time // zero when no timer is armed
}

// New starts the countdown actor and returns its adapter. onComplete
// may be nil; when set it fires exactly once per countdown, whether the
// timer ran out, was skipped, or completion was detected by Reconcile.
func New(clk clock.Clock, onComplete func()) *Engine {
	e := &Engine{
		clk:        clk,
		cmds:       make(chan command, 8),
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
		onComplete: onComplete,
	}
	go e.run()
	return e
}

// Events returns the actor's output stream. Ticks are dropped when the
// consumer lags; completion is additionally delivered via onComplete,
// which is never dropped.
func (e *Engine) Events() <-chan Event { return e.events }

// Start arms a countdown of the given duration from now.
func (e *Engine) Start(duration time.Duration) time.Time {
	end := e.clk.Now().Add(duration)
	e.mu.Lock()
	e.end = end
	e.mu.Unlock()
	e.cmds <- command{kind: cmdStart, end: end}
	return end
}

// StartUntil arms a countdown toward an existing absolute end time,
// used when resuming a mirrored session whose rest was mid-flight.
func (e *Engine) StartUntil(end time.Time) {
	e.mu.Lock()
	e.end = end
	e.mu.Unlock()
	e.cmds <- command{kind: cmdStart, end: end}
}

// Stop halts the countdown without firing completion. Idempotent and
// safe when no timer is running.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.end = time.Time{}
	e.mu.Unlock()
	e.cmds <- command{kind: cmdStop}
}

// Skip halts the countdown and fires completion immediately, bypassing
// the wait. Idempotent: skipping an already-finished or absent timer
// does nothing.
func (e *Engine) Skip() {
	if e.fireComplete() {
		e.cmds <- command{kind: cmdStop}
	}
}

// Adjust shifts the absolute end time by delta (for the ±10 s buttons).
// The tick interval is not restarted; the next tick simply recomputes
// against the moved end. Adjusting with no armed timer is a no-op.
// Returns the new end time and whether a timer was armed.
func (e *Engine) Adjust(delta time.Duration) (time.Time, bool) {
	e.mu.Lock()
	if e.end.IsZero() {
		e.mu.Unlock()
		return time.Time{}, false
	}
	e.end = e.end.Add(delta)
	end := e.end
	e.mu.Unlock()
	e.cmds <- command{kind: cmdAdjust, end: end}
	return end, true
}

// Remaining returns max(0, end − now), or false when no timer is armed.
func (e *Engine) Remaining() (time.Duration, bool) {
	e.mu.Lock()
	end := e.end
	e.mu.Unlock()
	if end.IsZero() {
		return 0, false
	}
	r := end.Sub(e.clk.Now())
	if r < 0 {
		r = 0
	}
	return r, true
}

// Reconcile is the foreground backstop for returning from suspension:
// if the stored end time has already passed, completion fires
// immediately regardless of what the actor managed to observe.
// Otherwise the caller just displays the recomputed remaining value.
func (e *Engine) Reconcile() (time.Duration, bool) {
	e.mu.Lock()
	end := e.end
	e.mu.Unlock()
	if end.IsZero() {
		return 0, false
	}
	r := end.Sub(e.clk.Now())
	if r <= 0 {
		if e.fireComplete() {
			e.cmds <- command{kind: cmdStop}
		}
		return 0, true
	}
	return r, true
}

// Close stops the actor goroutine. The engine is unusable afterwards.
func (e *Engine) Close() {
	close(e.done)
}

// fireComplete clears the armed end and emits completion exactly once.
// Returns false if no timer was armed (already fired or never started).
func (e *Engine) fireComplete() bool {
	e.mu.Lock()
	if e.end.IsZero() {
		e.mu.Unlock()
		return false
	}
	e.end = time.Time{}
	e.mu.Unlock()

	e.emit(Event{Kind: EventComplete})
	if e.onComplete != nil {
		e.onComplete()
	}
	return true
}

// emit performs a non-blocking send; a lagging consumer loses ticks
// rather than stalling the actor.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// run is the actor. It owns its copy of the end time and the ticker;
// the only communication with the adapter is the command channel in and
// the event channel out.
func (e *Engine) run() {
	var (
		end    time.Time
		ticker *clock.Ticker
		tickC  <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-e.done:
			return
		case cmd := <-e.cmds:
			switch cmd.kind {
			case cmdStart:
				end = cmd.end
				if ticker == nil {
					ticker = e.clk.NewTicker(TickInterval)
					tickC = ticker.C
				}
			case cmdStop:
				end = time.Time{}
				stopTicker()
			case cmdAdjust:
				if !end.IsZero() {
					end = cmd.end
				}
			}
		case <-tickC:
			if end.IsZero() {
				continue
			}
			remaining := end.Sub(e.clk.Now())
			if remaining <= 0 {
				end = time.Time{}
				stopTicker()
				e.fireComplete()
				continue
			}
			e.emit(Event{Kind: EventTick, Remaining: remaining})
		}
	}
}
