// Package api hosts the HTTP server, middleware, and JSON handlers.
// Notable routes:
//   - GET /, /health, /api/status for liveness and scheduler state.
//   - GET /healthz, /readyz, /metrics for probes and Prometheus scraping.
//   - /api/jobs and POST /api/generate-video for the video job queue.
//   - POST /api/generate/image and /tts for the generation proxies.
//   - /queue, /api/sheet/queue, /api/queue/next for spreadsheet tasks.
//   - /api/admin/* behind the shared admin secret.
package api
