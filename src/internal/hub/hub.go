// FILE: yetitel/src/internal/hub/hub.go

// Package hub is the live-update fabric: the dispatch loop publishes each
// persisted record here and SSE viewers subscribe by entity kind.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/log"
)

// Update is one live notification delivered to subscribers.
type Update struct {
	Kind   string
	ID     string
	Record any
}

// Hub fans notifications out to per-kind subscriber channels. Sends are
// non-blocking: a subscriber that cannot keep up misses updates rather
// than stalling the pipeline.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Update
	nextID atomic.Uint64
	closed bool
	logger *log.Logger

	// Statistics
	totalNotified atomic.Uint64
	totalDropped  atomic.Uint64
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[uint64]chan Update),
		logger: logger,
	}
}

// Notify broadcasts a record to every subscriber of the given entity kind.
// Fire-and-forget; never blocks and never fails.
func (h *Hub) Notify(kind, id string, record any) {
	h.totalNotified.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subID, ch := range h.subs[kind] {
		select {
		case ch <- Update{Kind: kind, ID: id, Record: record}:
		default:
			h.totalDropped.Add(1)
			if h.logger != nil {
				h.logger.Debug("msg", "Dropped update for slow subscriber",
					"component", "hub",
					"kind", kind,
					"subscriber_id", subID)
			}
		}
	}
}

// Subscribe registers a buffered channel for updates of one entity kind.
// The returned id is used to unsubscribe.
func (h *Hub) Subscribe(kind string, buffer int) (uint64, <-chan Update) {
	id := h.nextID.Add(1)
	ch := make(chan Update, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return id, ch
	}
	if h.subs[kind] == nil {
		h.subs[kind] = make(map[uint64]chan Update)
	}
	h.subs[kind][id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(kind string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[kind][id]; ok {
		delete(h.subs[kind], id)
		close(ch)
	}
}

// Close drops all subscribers. Further notifies are no-ops and further
// subscribes receive closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for kind, subs := range h.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(h.subs, kind)
	}
}

// GetStats returns broadcast statistics for the status endpoint.
func (h *Hub) GetStats() map[string]any {
	h.mu.RLock()
	subscribers := 0
	for _, subs := range h.subs {
		subscribers += len(subs)
	}
	h.mu.RUnlock()

	return map[string]any{
		"subscribers":    subscribers,
		"total_notified": h.totalNotified.Load(),
		"total_dropped":  h.totalDropped.Load(),
	}
}
