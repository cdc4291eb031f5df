package services

import (
	"sync"
)

// StatusHub fans backend status changes out to the SSE streams. Each
// subscriber holds at most one pending status; a newer one replaces it.
type StatusHub struct {
	mu      sync.Mutex
	clients map[string]chan BackendStatus
	last    BackendStatus
	hasLast bool
}

func NewStatusHub() *StatusHub {
	return &StatusHub{clients: make(map[string]chan BackendStatus)}
}

// Subscribe registers a stream. The last published status, if any, is
// already waiting on the returned channel.
func (h *StatusHub) Subscribe(clientID string) <-chan BackendStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old)
	}
	ch := make(chan BackendStatus, 1)
	if h.hasLast {
		ch <- h.last
	}
	h.clients[clientID] = ch
	return ch
}

func (h *StatusHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish never blocks. A subscriber that has not read the previous status
// gets it replaced by this one.
func (h *StatusHub) Publish(status BackendStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last, h.hasLast = status, true
	for _, ch := range h.clients {
		select {
		case <-ch:
		default:
		}
		ch <- status
	}
}

// Last returns the most recent status and whether one was published.
func (h *StatusHub) Last() (BackendStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

func (h *StatusHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
