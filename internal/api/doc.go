// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz for probes and GET /metrics for Prometheus scraping.
//   - GET /v1/parsers and /v1/entry-lists for discovery.
//   - POST /v1/runs to launch a run, then /v1/runs/{run_id} for its snapshot,
//     .../stop to end it early and .../dump to download the result.
package api
