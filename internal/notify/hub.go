package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hub is the in-process sink and feed. Delivery to a slow subscriber is
// dropped rather than blocking the dispatcher.
type Hub struct {
	buffer  int
	mu      sync.RWMutex
	subs    map[string]map[*hubStream]struct{}
	dropped atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, subs: map[string]map[*hubStream]struct{}{}}
}

func (h *Hub) Deliver(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ev.SessionID] {
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, sessionID string) (Stream, error) {
	s := &hubStream{hub: h, sessionID: sessionID, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[*hubStream]struct{}{}
	}
	h.subs[sessionID][s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

type hubStream struct {
	hub       *Hub
	sessionID string
	ch        chan Event
	once      sync.Once
}

func (s *hubStream) Events() <-chan Event { return s.ch }

func (s *hubStream) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs[s.sessionID], s)
		if len(s.hub.subs[s.sessionID]) == 0 {
			delete(s.hub.subs, s.sessionID)
		}
		close(s.ch)
		s.hub.mu.Unlock()
	})
	return nil
}
