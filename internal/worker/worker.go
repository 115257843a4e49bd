// Package worker implements the crawl pipeline execution loop: fetch a page,
// build its edges, upsert them and publish the endpoint identities.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/crawler"
	"github.com/JakeFAU/webgraph/internal/edge"
	"github.com/JakeFAU/webgraph/internal/metrics"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// Page status labels.
const (
	StatusIndexed    = "indexed"
	StatusBlocked    = "blocked"
	StatusFetchError = "fetch_error"
	StatusIndexError = "index_error"
)

// Config controls Worker behavior.
type Config struct {
	// Topic receives one SubgraphMessage per indexed page. Empty disables publishing.
	Topic string
	// Collections tag edges of items that carry none.
	Collections []string
	// ClickDepthResolvable marks target depths for later resolution.
	ClickDepthResolvable bool
}

// SubgraphMessage is the URL-identity fan-out published for each page.
type SubgraphMessage struct {
	RequestID string             `json:"request_id,omitempty"`
	Source    webgraph.URLStub   `json:"source"`
	Inbound   []webgraph.URLStub `json:"inbound"`
	Outbound  []webgraph.URLStub `json:"outbound"`
	Edges     int                `json:"edges"`
}

// Worker consumes queue items and executes the edge pipeline.
type Worker struct {
	queue     crawler.Queue
	fetcher   crawler.PageFetcher
	builder   *edge.Builder
	index     webgraph.Index
	publisher webgraph.Publisher
	limiter   crawler.Limiter
	blocklist *crawler.Blocklist
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. publisher, limiter and blocklist may be nil.
func New(
	queue crawler.Queue,
	fetcher crawler.PageFetcher,
	builder *edge.Builder,
	index webgraph.Index,
	publisher webgraph.Publisher,
	limiter crawler.Limiter,
	blocklist *crawler.Blocklist,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		queue:     queue,
		fetcher:   fetcher,
		builder:   builder,
		index:     index,
		publisher: publisher,
		limiter:   limiter,
		blocklist: blocklist,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the
// queue is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued page", zap.String("request_id", item.RequestID), zap.String("url", item.URL))

		metrics.IncActiveWorkers()
		if err := w.Process(ctx, item); err != nil {
			w.logger.Error("page failed",
				zap.String("request_id", item.RequestID),
				zap.String("url", item.URL),
				zap.Error(err),
			)
		}
		metrics.DecActiveWorkers()
	}
}

// Process runs the pipeline for one item.
func (w *Worker) Process(ctx context.Context, item crawler.QueueItem) error {
	if w.fetcher == nil || w.builder == nil || w.index == nil {
		return errors.New("worker is not fully configured")
	}
	source, err := webgraph.ParseURL(item.URL)
	if err != nil {
		metrics.ObservePage(item.URL, StatusFetchError)
		return fmt.Errorf("parse url: %w", err)
	}
	if rule, blocked := w.blocklist.Blocks(source); blocked {
		metrics.ObservePage(source.Host(), StatusBlocked)
		w.logger.Warn("fetch blocked by host blocklist",
			zap.String("url", source.String()),
			zap.String("rule", rule),
		)
		return nil
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, source.String()); err != nil {
			return err
		}
	}

	res, err := w.fetcher.Fetch(ctx, source.String())
	if err != nil {
		metrics.ObservePage(source.Host(), StatusFetchError)
		return fmt.Errorf("fetch page: %w", err)
	}

	page := res.Page
	page.SourceClickDepth = item.ClickDepth
	page.Collections = item.Collections
	if len(page.Collections) == 0 {
		page.Collections = w.cfg.Collections
	}
	page.ClickDepthResolvable = w.cfg.ClickDepthResolvable

	sg, err := w.builder.Build(page)
	if err != nil {
		metrics.ObservePage(source.Host(), StatusIndexError)
		return fmt.Errorf("build edges: %w", err)
	}
	if err := w.index.Upsert(ctx, sg.Edges()...); err != nil {
		metrics.ObservePage(source.Host(), StatusIndexError)
		return fmt.Errorf("upsert edges: %w", err)
	}
	metrics.ObservePage(source.Host(), StatusIndexed)

	if err := w.publish(ctx, item, page.Source, sg); err != nil {
		return err
	}
	w.logger.Info("page indexed",
		zap.String("request_id", item.RequestID),
		zap.String("url", page.Source.String()),
		zap.Int("status", res.StatusCode),
		zap.Int("inbound", len(sg.Inbound)),
		zap.Int("outbound", len(sg.Outbound)),
	)
	return nil
}

func (w *Worker) publish(ctx context.Context, item crawler.QueueItem, source *webgraph.URL, sg edge.Subgraph) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	msg := SubgraphMessage{
		RequestID: item.RequestID,
		Source:    webgraph.URLStub{Protocol: source.Protocol(), Stub: source.Stub()},
		Inbound:   sg.InboundURLs,
		Outbound:  sg.OutboundURLs,
		Edges:     sg.Len(),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, msg)
	if err != nil {
		return fmt.Errorf("publish subgraph: %w", err)
	}
	w.logger.Debug("subgraph published", zap.String("url", source.String()), zap.String("message_id", id))
	return nil
}
