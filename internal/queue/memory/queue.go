// Package memory provides a bounded in-memory crawl queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/webgraph/internal/crawler"
)

var (
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = crawler.ErrQueueClosed
	// ErrDuplicate is returned when the URL is already waiting in the queue.
	ErrDuplicate = crawler.ErrDuplicate
)

// Queue is a bounded in-memory queue with context-aware operations. A URL
// is held at most once while it waits.
type Queue struct {
	ch   chan crawler.QueueItem
	done chan struct{}

	mu      sync.Mutex
	waiting map[string]struct{}
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:      make(chan crawler.QueueItem, capacity),
		done:    make(chan struct{}),
		waiting: make(map[string]struct{}),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if _, dup := q.waiting[item.URL]; dup {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, item.URL)
	}
	q.waiting[item.URL] = struct{}{}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.release(item.URL)
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		q.release(item.URL)
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	select {
	case <-ctx.Done():
		return crawler.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return crawler.QueueItem{}, ErrClosed
	case item := <-q.ch:
		q.release(item.URL)
		return item, nil
	}
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) release(url string) {
	q.mu.Lock()
	delete(q.waiting, url)
	q.mu.Unlock()
}

// Close stops the queue. Waiting items are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
