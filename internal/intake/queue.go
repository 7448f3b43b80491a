package intake

import "github.com/lokutor-ai/cap-dab-gateway/internal/capxml"

// BoundedQueue is a fixed-capacity FIFO of AlertEvents: the HTTP server
// is the single producer, the scheduler the single consumer, per §4.5.
type BoundedQueue struct {
	ch chan capxml.AlertEvent
}

// NewBoundedQueue returns a BoundedQueue with the given capacity
// (queuelimit in the server config, default 10).
func NewBoundedQueue(capacity int) *BoundedQueue {
	if capacity <= 0 {
		capacity = 10
	}
	return &BoundedQueue{ch: make(chan capxml.AlertEvent, capacity)}
}

// TryEnqueue implements Queue.
func (q *BoundedQueue) TryEnqueue(ev capxml.AlertEvent) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// TryDequeue non-blockingly consumes up to one event, per the
// scheduler's intake-drain step.
func (q *BoundedQueue) TryDequeue() (capxml.AlertEvent, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	default:
		return capxml.AlertEvent{}, false
	}
}
