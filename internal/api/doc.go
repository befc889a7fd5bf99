// Package api hosts the optional status server that runs alongside a crawl.
// Routes:
//   - GET /healthz and /readyz for probes; readyz turns 200 once the crawl starts.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the latest run snapshot and /v1/progress/{run_id}
//     for a specific run.
package api
