// Package session is the observable session store shared by every access
// gate in the process.
//
// Session changes originate in the auth service, travel over the event bus
// (NATS or the in-process LocalBus) and are fanned out by a Hub. Gates never
// talk to the Hub directly: each request gets a Bound source that filters
// the Hub's changes down to the one session its token names.
package session

import (
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/lensdesk/internal/events"
)

// Hub fans session changes out to subscribers. The zero value is not usable;
// call NewHub.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(events.SessionChanged)
	last   *events.SessionChanged
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]func(events.SessionChanged))}
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. Unsubscribing twice is harmless.
func (h *Hub) Subscribe(fn func(events.SessionChanged)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish delivers change to every current subscriber. Subscribers are called
// outside the lock, so a subscriber may unsubscribe itself.
func (h *Hub) Publish(change events.SessionChanged) {
	h.mu.Lock()
	c := change
	h.last = &c
	fns := make([]func(events.SessionChanged), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		h.deliver(fn, change)
	}
}

// Last returns the most recent change, or nil before the first one.
func (h *Hub) Last() *events.SessionChanged {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return nil
	}
	c := *h.last
	return &c
}

// Len returns the number of current subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) deliver(fn func(events.SessionChanged), change events.SessionChanged) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session: subscriber panicked", "panic", r, "session", change.SessionID)
		}
	}()
	fn(change)
}
