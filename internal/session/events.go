package session

import (
	"sync"
	"time"
)

// Event is one observed state transition, published to watchers.
type Event struct {
	SessionID string    `json:"session_id"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	At        time.Time `json:"at"`
}

// Hub fans state transitions out to per-session subscribers. Slow consumers
// drop events rather than block the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[int]chan Event{}}
}

// Subscribe returns a channel of events for the session and a cancel
// function. The channel closes on cancel.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[int]chan Event{}
	}
	h.subs[sessionID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to the session's subscribers without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
