// Package api hosts the read-only HTTP server for browsing stored breaches.
// Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/breaches and /v1/breaches/{id} for listing and detail.
//   - GET /v1/states and /v1/states/{state}/breaches for per-state views.
package api
