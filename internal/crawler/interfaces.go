package crawler

import (
	"context"
	"errors"

	"github.com/JakeFAU/webgraph/internal/edge"
)

var (
	// ErrQueueClosed is returned by a Queue that has been shut down.
	ErrQueueClosed = errors.New("queue closed")
	// ErrDuplicate is returned by a Queue that already holds the URL.
	ErrDuplicate = errors.New("url already queued")
)

// Queue provides enqueue/dequeue semantics for page crawls.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// PageFetcher fetches a URL and extracts its links.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// QueueItem is one page waiting to be crawled.
type QueueItem struct {
	RequestID   string   `json:"request_id"`
	URL         string   `json:"url"`
	ClickDepth  int      `json:"click_depth"`
	Collections []string `json:"collections,omitempty"`
	Submitted   int64    `json:"submitted"`
}

// FetchResult is the outcome of fetching one page. Page carries the source,
// response metadata and extracted links; the caller fills in crawl context
// such as collections and click depth.
type FetchResult struct {
	StatusCode int
	Page       edge.Page
}
