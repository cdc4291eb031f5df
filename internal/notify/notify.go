// Package notify holds the per-session toast queue and fans new
// notifications out to live subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the severity shown in the UI.
type Kind string

const (
	Info    Kind = "info"
	Success Kind = "success"
	Warning Kind = "warning"
	Error   Kind = "error"
)

const (
	DefaultCapacity = 5
	DefaultTTL      = 5 * time.Second
)

// Notification is one toast.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier is the write side of a Queue.
type Notifier interface {
	Notify(kind Kind, title, message string) Notification
}

// Queue is a bounded, expiring list of notifications. When full, the oldest
// entry is dropped. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	ttl      time.Duration
	now      func() time.Time

	subscribers map[string]chan Notification
}

func NewQueue(capacity int, ttl time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		capacity:    capacity,
		ttl:         ttl,
		now:         time.Now,
		subscribers: make(map[string]chan Notification),
	}
}

// Notify queues a notification and forwards it to every subscriber.
func (q *Queue) Notify(kind Kind, title, message string) Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(q.ttl),
	}

	q.evictLocked(now)
	if len(q.items) >= q.capacity {
		q.items = append(q.items[:0], q.items[len(q.items)-q.capacity+1:]...)
	}
	q.items = append(q.items, n)

	for _, ch := range q.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

// Pending returns the live notifications, oldest first.
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evictLocked(q.now())
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Dismiss removes a notification. It reports whether id was present.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) evictLocked(now time.Time) {
	kept := q.items[:0]
	for _, n := range q.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	q.items = kept
}

// Subscribe registers a live listener. The channel is buffered and slow
// listeners miss notifications rather than block Notify.
func (q *Queue) Subscribe(clientID string) <-chan Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch := make(chan Notification, 100)
	q.subscribers[clientID] = ch
	return ch
}

func (q *Queue) Unsubscribe(clientID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.subscribers[clientID]; ok {
		close(ch)
		delete(q.subscribers, clientID)
	}
}

func (q *Queue) SubscriberCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subscribers)
}
