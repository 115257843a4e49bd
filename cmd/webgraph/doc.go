// Package main hosts the webgraph service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts page submissions, triggers reconciliation passes and serves edge
//     lookups. Submitted URLs are stamped with a request ID and pushed onto the crawl queue.
//   - Dispatcher & queue: items flow through a bounded in-memory queue sized by config.Crawler.QueueDepth and are
//     fanned out to a fixed worker pool sized by config.Crawler.Concurrency.
//   - Crawl pipeline: each worker checks the host blocklist, waits on the per-host rate limiter, fetches the page
//     with Colly, builds one edge per link under the field selection schema, upserts the batch into the index and
//     publishes a subgraph summary.
//   - Reconciliation: edges whose click depth could not be decided at build time carry a CLICKDEPTH process tag.
//     POST /v1/postprocess, or the optional ticker, streams those edges, resolves depths from the citation graph
//     and rewrites them without the tag.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Quick checklist:
//   - Configure env vars: WEBGRAPH_SERVER_PORT, WEBGRAPH_INDEX_BACKEND=postgres with WEBGRAPH_INDEX_DSN,
//     WEBGRAPH_SCHEMA_FILE, WEBGRAPH_PUBSUB_PROJECT_ID and WEBGRAPH_PUBSUB_TOPIC when publishing to Pub/Sub.
//   - Run locally: go run ./cmd/webgraph -config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGTERM by draining the HTTP server, closing the queue and writing the schema file.
package main
