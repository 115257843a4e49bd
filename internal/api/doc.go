// Package api hosts the HTTP server, middleware and REST handlers for the
// webgraph service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/pages to queue pages for edge extraction.
//   - POST /v1/postprocess to run one reconciliation pass.
//   - GET /v1/edges/{edge_id}, GET /v1/edges and GET /v1/schema for reads.
package api
