// Package memory provides the in-process work queue shared by the fetch pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// Queue is an unbounded FIFO with context-aware operations. It is unbounded
// so a worker enqueuing discovered articles can never block on its own pool.
type Queue struct {
	mu     sync.Mutex
	items  []harvest.Task
	ready  chan struct{}
	closed bool
}

// NewQueue constructs an empty queue with the provided initial capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		items: make([]harvest.Task, 0, capacity),
		ready: make(chan struct{}),
	}
}

// Enqueue appends a task. It fails once the context ends or the queue closes.
func (q *Queue) Enqueue(ctx context.Context, task harvest.Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return harvest.ErrQueueClosed
	}
	q.items = append(q.items, task)
	q.signal()
	return nil
}

// Dequeue pops the oldest task, blocking until one is available. After Close
// it keeps returning queued tasks, then harvest.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (harvest.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items[0] = harvest.Task{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return harvest.Task{}, harvest.ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return harvest.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-ready:
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops new enqueues and wakes blocked consumers. Safe to call twice.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.signal()
}

// signal wakes every waiting consumer; callers hold q.mu.
func (q *Queue) signal() {
	close(q.ready)
	q.ready = make(chan struct{})
}
