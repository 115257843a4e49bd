// Package main wires together the webgraph service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/api"
	"github.com/JakeFAU/webgraph/internal/clickdepth"
	"github.com/JakeFAU/webgraph/internal/config"
	"github.com/JakeFAU/webgraph/internal/crawler"
	"github.com/JakeFAU/webgraph/internal/dispatcher"
	"github.com/JakeFAU/webgraph/internal/edge"
	collyfetcher "github.com/JakeFAU/webgraph/internal/fetcher/colly"
	"github.com/JakeFAU/webgraph/internal/fieldselection"
	memoryindex "github.com/JakeFAU/webgraph/internal/index/memory"
	postgresindex "github.com/JakeFAU/webgraph/internal/index/postgres"
	"github.com/JakeFAU/webgraph/internal/logging"
	"github.com/JakeFAU/webgraph/internal/policy/ratelimit"
	"github.com/JakeFAU/webgraph/internal/postprocess"
	memorypublisher "github.com/JakeFAU/webgraph/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/webgraph/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/webgraph/internal/queue/memory"
	"github.com/JakeFAU/webgraph/internal/webgraph"
	"github.com/JakeFAU/webgraph/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("webgraph exited", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	policy, err := fieldselection.Load(cfg.Schema.File, logging.Component(logger, "schema"),
		fieldselection.WithLazy(cfg.Schema.Lazy))
	if err != nil {
		return err
	}
	if cfg.Schema.File != "" {
		defer policy.Save(cfg.Schema.File, logging.Component(logger, "schema"))
	}

	index, ready, closeIndex, err := openIndex(ctx, cfg.Index, policy.Alias(webgraph.FieldID))
	if err != nil {
		return err
	}
	defer closeIndex()

	var resolver webgraph.ClickDepthResolver
	if r, rerr := clickdepth.New(index, policy, cfg.PostProcess.MaxClickDepth, logging.Component(logger, "clickdepth")); rerr != nil {
		logger.Warn("click depth resolution disabled", zap.Error(rerr))
	} else {
		resolver = r
	}
	pp := postprocess.New(policy, index, resolver, postprocess.Config{
		PageSize:   cfg.PostProcess.PageSize,
		MaxResults: cfg.PostProcess.MaxResults,
		Buffer:     cfg.PostProcess.Buffer,
		Timeout:    cfg.PostProcess.Timeout(),
	}, logging.Component(logger, "postprocess"))

	publisher, closePublisher, err := openPublisher(ctx, cfg.PubSub)
	if err != nil {
		return err
	}
	defer closePublisher()

	queue := queueMemory.NewQueue(cfg.Crawler.QueueDepth)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: !cfg.Crawler.IgnoreRobots,
		Timeout:       cfg.Crawler.FetchTimeout(),
	})
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Crawler.RateRPS,
		DefaultBurst: cfg.Crawler.RateBurst,
	})
	blocklist := crawler.NewBlocklist(cfg.Crawler.BlockedHosts)
	if n := blocklist.Len(); n > 0 {
		logger.Info("host blocklist loaded", zap.Int("rules", n))
	}
	builder := edge.NewBuilder(policy, nil, logging.Component(logger, "edge"))

	workerCfg := worker.Config{
		Topic:                cfg.PubSub.Topic,
		Collections:          cfg.Crawler.Collections,
		ClickDepthResolvable: pp.Enabled(),
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			fetcher,
			builder,
			index,
			publisher,
			limiter,
			blocklist,
			workerCfg,
			logging.Component(logger, "worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(
		dispatch,
		pp,
		api.NewEdgeHandler(index, policy, logging.Component(logger, "edges")),
		ready,
		cfg,
		logging.Component(logger, "api"),
	)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	if interval := cfg.PostProcess.Interval(); interval > 0 && pp.Enabled() {
		go schedulePostProcess(ctx, pp, interval, logger)
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-dispatchDone
	logger.Info("shutdown complete")
	return nil
}

// openIndex selects the configured backend and returns it with a readiness
// probe and a close function.
func openIndex(ctx context.Context, cfg config.IndexConfig, idKey string) (webgraph.Index, api.ReadyFunc, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		idx, err := postgresindex.New(ctx, postgresindex.Config{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.ConnLifetime(),
		}, idKey)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := idx.EnsureSchema(ctx); err != nil {
			idx.Close()
			return nil, nil, nil, err
		}
		return idx, idx.Ping, idx.Close, nil
	default:
		return memoryindex.New(idKey), nil, func() {}, nil
	}
}

// openPublisher returns a Pub/Sub publisher when a project is configured and
// an in-memory one otherwise.
func openPublisher(ctx context.Context, cfg config.PubSubConfig) (webgraph.Publisher, func(), error) {
	if cfg.ProjectID == "" {
		return memorypublisher.New(), func() {}, nil
	}
	pub, err := pubsubpublisher.New(ctx, cfg.ProjectID, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			zap.L().Warn("pubsub close failed", zap.Error(err))
		}
	}, nil
}

func schedulePostProcess(ctx context.Context, pp *postprocess.PostProcessor, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := pp.Run(ctx)
			switch {
			case errors.Is(err, postprocess.ErrAlreadyRunning):
				logger.Debug("scheduled post-processing skipped, pass in progress")
			case err != nil:
				logger.Error("scheduled post-processing failed", zap.Error(err))
			default:
				logger.Info("scheduled post-processing finished",
					zap.String("run_id", report.RunID),
					zap.Int("processed", report.Processed),
					zap.Int("skipped", report.Skipped),
				)
			}
		}
	}
}
