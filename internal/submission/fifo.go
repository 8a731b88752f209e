package submission

import "sync"

// fifo is a thread-safe unbounded FIFO of submission ids.
//
// A buffered signal channel of size one lets the worker wait for work with
// select alongside ctx.Done(). Closing the queue closes the channel, which
// wakes every waiter.
type fifo struct {
	mu     sync.Mutex
	items  []string
	closed bool
	signal chan struct{}
}

func newFIFO() *fifo {
	return &fifo{
		items:  make([]string, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends id. Returns false if the queue is closed.
func (q *fifo) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, id)

	// Non-blocking: the size-one buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front id without blocking.
func (q *fifo) TryDequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return id, true
}

// Wait returns a channel that fires when ids may be available or the
// queue has been closed.
func (q *fifo) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued ids.
func (q *fifo) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *fifo) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes waiters.
func (q *fifo) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
