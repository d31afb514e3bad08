// Package server provides the HTTP server for the download service.
//
// the server is configured through environment variables
// (see internal/config/config.go for details)
//
// Routes:
//   - GET /downloads/{filename} and GET /records/{id}/download (internal/download)
//   - GET /health/live, /health/ready, /version (internal/server/handlers)
//   - GET /metrics (Prometheus)
//
// middleware is in internal/server/middleware
package server
