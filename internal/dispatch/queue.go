// Copyright 2025 James Ross
package dispatch

import (
	"sync"

	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// Queue is a bounded counter of accepted-but-not-finished tasks.
// Acceptance is non-blocking: a full queue rejects instead of waiting.
type Queue struct {
	slots chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewQueue(capacity int) *Queue {
	return &Queue{slots: make(chan struct{}, capacity)}
}

// TryAcquire claims a slot. It returns false when the queue is full or the
// queue has been closed for shutdown.
func (q *Queue) TryAcquire() bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()
	select {
	case q.slots <- struct{}{}:
		obs.QueueDepth.Set(float64(len(q.slots)))
		return true
	default:
		return false
	}
}

// Release frees a slot claimed by TryAcquire.
func (q *Queue) Release() {
	select {
	case <-q.slots:
	default:
	}
	obs.QueueDepth.Set(float64(len(q.slots)))
}

// Close rejects all future acquisitions. In-flight tasks keep their slots
// until Release.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Closed reports whether the queue has been shut down.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Depth is the number of claimed slots.
func (q *Queue) Depth() int {
	return len(q.slots)
}
