// Package handlers provides the infrastructure HTTP handlers (health, readiness, version).
//
// The download endpoints are served by internal/download.
package handlers
