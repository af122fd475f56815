// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/last for the most recent run report.
//   - POST /v1/runs to start a crawl outside the schedule.
package api
