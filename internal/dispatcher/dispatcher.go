// Package dispatcher manages worker fan-out over the crawl queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/webgraph/internal/crawler"
	"github.com/JakeFAU/webgraph/internal/webgraph"
	"github.com/JakeFAU/webgraph/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
	clock   webgraph.Clock
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		clock:   webgraph.SystemClock{},
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue stamps the item with a request id and submission time and hands
// it to the queue. The stamped item is returned.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) (crawler.QueueItem, error) {
	if item.RequestID == "" {
		item.RequestID = uuid.NewString()
	}
	if item.Submitted == 0 {
		item.Submitted = d.clock.Now().Unix()
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return crawler.QueueItem{}, fmt.Errorf("queue enqueue: %w", err)
	}
	return item, nil
}
