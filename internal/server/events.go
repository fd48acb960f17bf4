package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/claude/liftlog/internal/timer"
)

// eventHub fans the timer actor's single event stream out to any number
// of SSE subscribers. Slow subscribers lose ticks (their channel is
// bounded), never stall the pump.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan timer.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan timer.Event]struct{})}
}

func (h *eventHub) subscribe() chan timer.Event {
	ch := make(chan timer.Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan timer.Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *eventHub) broadcast(ev timer.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// runEventPump forwards timer events to the hub until done closes.
func (s *Server) runEventPump(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-s.timer.Events():
			s.hub.broadcast(ev)
		}
	}
}

// handleEvents streams timer ticks and completions as server-sent
// events. The client still polls /timer/sync on visibility changes;
// this stream is display sugar, not the correctness path.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			payload, err := json.Marshal(map[string]any{
				"kind":         ev.Kind,
				"remaining_ms": ev.Remaining.Milliseconds(),
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
