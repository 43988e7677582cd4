package api

import (
	"sync"

	"cdrlens/domain/core"
	"cdrlens/internal/pipeline"
)

// Hub fans run events out to SSE subscribers. Events are retained per run so
// a client that connects after the run started still sees the full stream.
type Hub struct {
	mu      sync.Mutex
	history map[core.RunID][]pipeline.Event
	subs    map[core.RunID][]chan pipeline.Event
	done    map[core.RunID]bool
}

func NewHub() *Hub {
	return &Hub{
		history: make(map[core.RunID][]pipeline.Event),
		subs:    make(map[core.RunID][]chan pipeline.Event),
		done:    make(map[core.RunID]bool),
	}
}

// Publish records an event and delivers it to current subscribers. Slow
// subscribers lose intermediate progress events rather than blocking the
// pipeline; terminal events evict buffered progress so completion is always
// the last event a live subscriber sees.
func (h *Hub) Publish(ev pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history[ev.RunID] = append(h.history[ev.RunID], ev)
	terminal := ev.Type != pipeline.EventProgress
	for _, ch := range h.subs[ev.RunID] {
		for {
			select {
			case ch <- ev:
			default:
				if terminal {
					// make room by discarding the oldest buffered event
					select {
					case <-ch:
					default:
					}
					continue
				}
			}
			break
		}
	}
}

// Finish marks a run's stream complete and closes subscriber channels.
func (h *Hub) Finish(id core.RunID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done[id] = true
	for _, ch := range h.subs[id] {
		close(ch)
	}
	delete(h.subs, id)
}

// Subscribe returns a channel primed with the run's event history. The
// second return is false when the run is unknown. The caller must call
// Unsubscribe unless the channel was closed by Finish.
func (h *Hub) Subscribe(id core.RunID) (<-chan pipeline.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	history, known := h.history[id]
	if !known && !h.done[id] {
		return nil, false
	}

	ch := make(chan pipeline.Event, len(history)+32)
	for _, ev := range history {
		ch <- ev
	}
	if h.done[id] {
		close(ch)
		return ch, true
	}
	h.subs[id] = append(h.subs[id], ch)
	return ch, true
}

// Unsubscribe detaches a live subscriber.
func (h *Hub) Unsubscribe(id core.RunID, ch <-chan pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[id]
	for i, sub := range subs {
		if (<-chan pipeline.Event)(sub) == ch {
			h.subs[id] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Track registers a run so subscribers can attach before its first event.
func (h *Hub) Track(id core.RunID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.history[id]; !ok {
		h.history[id] = nil
	}
}
