package server

import (
	"sync"

	"github.com/mikeboe/deep-research/pkg/research"
)

const subscriberBuffer = 64

// Hub fans research events out to the SSE subscribers of each session.
// Slow subscribers miss events rather than stall the run.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan research.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan research.Event]struct{})}
}

// Subscribe returns a channel of the session's events and a func that
// unsubscribes. The channel is closed when the session ends.
func (h *Hub) Subscribe(sessionID string) (<-chan research.Event, func()) {
	ch := make(chan research.Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan research.Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sessionID][ch]; ok {
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		}
	}
}

// Publish is a research.Observer.
func (h *Hub) Publish(ev research.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends every subscription of the session.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sessionID] {
		close(ch)
	}
	delete(h.subs, sessionID)
}

func (h *Hub) subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
