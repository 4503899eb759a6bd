// Package pipeline provides the runtime primitives the stage workers are
// built on: bounded lossy queues and the polling worker loop.
//
// The pipeline prioritizes freshness over completeness. A full queue drops
// the incoming write instead of stalling the producer; an empty queue
// returns immediately so the consumer can decide how to wait.
package pipeline

import (
	"sync/atomic"

	"github.com/watchgrid/watchgrid/internal/monitoring"
)

// dropLogInterval spaces out queue-overflow warnings; one line per this many
// drops, not one per drop.
const dropLogInterval = 64

// Queue is a bounded single-producer/single-consumer FIFO with non-blocking
// reads and writes.
type Queue[T any] struct {
	name  string
	ch    chan T
	drops atomic.Int64
}

// NewQueue creates a queue with the given capacity. The name appears in
// overflow warnings.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue[T]{name: name, ch: make(chan T, capacity)}
}

// Write enqueues v if there is room. On a full queue the value is dropped
// and false is returned; a warning is logged periodically.
func (q *Queue[T]) Write(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		if n := q.drops.Add(1); n%dropLogInterval == 1 {
			monitoring.Logf("[Queue-%s] full, %d writes dropped so far", q.name, n)
		}
		return false
	}
}

// Read dequeues the oldest value. The second return is false when the queue
// is empty.
func (q *Queue[T]) Read() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Drops returns how many writes have been dropped on overflow.
func (q *Queue[T]) Drops() int64 { return q.drops.Load() }
