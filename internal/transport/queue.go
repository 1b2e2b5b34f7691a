package transport

import "sync"

// Queue is an unbounded FIFO handing items between goroutines: inbound
// frames from the reader to the poll loop, outbound requests from the poll
// loop to the writer. Push never blocks; Drain never waits.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends item and reports whether the queue accepted it.
func (queue *Queue[T]) Push(item T) bool {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.closed {
		return false
	}
	queue.items = append(queue.items, item)

	select {
	case queue.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns everything queued so far, oldest first.
func (queue *Queue[T]) Drain() []T {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.items) == 0 {
		return nil
	}
	items := queue.items
	queue.items = nil
	return items
}

// Ready is signaled after a Push. It lets the writer sleep until there is
// something to drain.
func (queue *Queue[T]) Ready() <-chan struct{} {
	return queue.ready
}

// Close makes later pushes fail. Items already queued can still be
// drained.
func (queue *Queue[T]) Close() {
	queue.mu.Lock()
	queue.closed = true
	queue.mu.Unlock()
}
