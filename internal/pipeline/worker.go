package pipeline

import (
	"context"
	"time"
)

// PollInterval is how long a consumer sleeps when its input queue is empty.
const PollInterval = 10 * time.Millisecond

// Consume polls q until ctx is cancelled, invoking fn for every element.
// The current element is always drained before returning.
func Consume[T any](ctx context.Context, q *Queue[T], fn func(T)) {
	for {
		v, ok := q.Read()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(PollInterval):
			}
			continue
		}
		fn(v)
	}
}
