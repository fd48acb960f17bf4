package recovery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/session"
	"github.com/fxamacker/cbor/v2"
)

// mirrorDebounce coalesces bursts of session mutations into one write.
const mirrorDebounce = 200 * time.Millisecond

// Mirror is the tier-2 persistence layer: a fast on-disk copy of the
// full session state, rewritten (debounced) on every mutation. It
// survives a process restart from the same data dir and restores the
// exact step position, unlike the tier-3 record. Writes happen on a
// dedicated goroutine so a slow disk can never delay a session action;
// failures are logged and swallowed — the in-memory session stays
// authoritative.
type Mirror struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	pending *session.Session
	dirty   bool

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewMirror creates the mirror writing to dir/session.cbor and starts
// its writer goroutine.
func NewMirror(dir string, log *slog.Logger) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	m := &Mirror{
		path: filepath.Join(dir, "session.cbor"),
		log:  log,
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writer()
	return m, nil
}

// Update schedules a rewrite with the given snapshot. A nil snapshot
// means the session ended and the mirror file should be removed. Never
// blocks.
func (m *Mirror) Update(s *session.Session) {
	m.mu.Lock()
	m.pending = s
	m.dirty = true
	m.mu.Unlock()
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Flush writes any pending snapshot synchronously. Used at shutdown so
// the last mutation is not lost to the debounce window.
func (m *Mirror) Flush() error {
	m.mu.Lock()
	s, dirty := m.pending, m.dirty
	m.dirty = false
	m.mu.Unlock()
	if !dirty {
		return nil
	}
	return m.write(s)
}

// Load reads the mirrored session, or nil when no mirror exists.
func (m *Mirror) Load() (*session.Session, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session mirror: %w", err)
	}
	var s session.Session
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session mirror: %w", err)
	}
	return &s, nil
}

// Close stops the writer after flushing pending state.
func (m *Mirror) Close() error {
	err := m.Flush()
	close(m.done)
	m.wg.Wait()
	return err
}

func (m *Mirror) writer() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.kick:
			// Let a burst of mutations settle before touching disk.
			select {
			case <-time.After(mirrorDebounce):
			case <-m.done:
				return
			}
			m.mu.Lock()
			s, dirty := m.pending, m.dirty
			m.dirty = false
			m.mu.Unlock()
			if !dirty {
				continue
			}
			if err := m.write(s); err != nil {
				m.log.Warn("session mirror write failed", "error", err)
			}
		}
	}
}

// write replaces the mirror file atomically, or removes it when the
// session ended.
func (m *Mirror) write(s *session.Session) error {
	if s == nil {
		if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing session mirror: %w", err)
		}
		return nil
	}
	data, err := cbor.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session mirror: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing session mirror: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replacing session mirror: %w", err)
	}
	return nil
}
