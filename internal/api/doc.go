// Package api hosts the operator HTTP surface of the schedule command:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs for recent scheduled run summaries.
//   - GET /v1/searches for the configured searches.
package api
