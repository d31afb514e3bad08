package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/download"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
)

// ReadinessCheck reports whether a dependency is able to serve requests.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HandleHealth godoc
//
//	@Summary		Health (liveness) Check
//	@Description	Check if the HTTP service is alive and responding.
//	@Tags			Common
//	@Produce		plain
//
//	@Success		200	{string}	string	"OK"
//
//	@Router			/health/live [get]
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ReadinessResponse is returned by the readiness check.
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
	Reason string `json:"reason,omitempty" example:"database unavailable"`
}

// HandleReadiness godoc
//
//	@Summary		Readiness Check
//	@Description	Checks if the service is ready to accept traffic (download settings configured, database reachable when used)
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	ReadinessResponse	"status ready"
//	@Failure		503	{object}	ReadinessResponse	"status not ready"
//	@Router			/health/ready [get]
func HandleReadiness(checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				logger.ContextRequestLogger(r.Context()).Warn("readiness check failed",
					slog.String("check", c.Name),
					slog.String("error", err.Error()))
				download.RespondWithJSONPayload(w, http.StatusServiceUnavailable, ReadinessResponse{
					Status: "not ready",
					Reason: c.Name + " unavailable",
				})
				return
			}
		}
		download.RespondWithJSONPayload(w, http.StatusOK, ReadinessResponse{Status: "ready"})
	}
}
