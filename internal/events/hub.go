package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Hub delivers events to in-process subscribers of a session. Slow
// subscribers lose events instead of blocking publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for sessionID and a cancel func that
// must be called to release it. The channel is closed by cancel or Close.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(sessionID, ch) })
	}
}

func (h *Hub) remove(sessionID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	if e.SessionID == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[e.SessionID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, id)
	}
}
