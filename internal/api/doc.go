// Package api hosts the HTTP server, middleware, and REST handlers for the
// conversion service. Notable routes:
//   - GET /healthz, /readyz for orchestration probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/convert for the synchronous single-URL pipeline.
//   - POST /v1/jobs for asynchronous sitemap/URL-list jobs, plus
//     /v1/jobs/{job_id}/{status,result,cancel}.
package api
