package download

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the Service over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleDownload godoc
//
//	@Summary		Get a download link
//	@Description	Returns a presigned URL (valid for one hour) for the caller's artifact.
//	@Description	Only the part of the reference after the last '_' is used; the identity
//	@Description	half of the record key always comes from the caller's verified token.
//	@Tags			Downloads
//	@Produce		json
//	@Security		BearerAuth
//	@Param			filename	path		string			true	"record reference: <email>_<uploadId>"
//	@Success		200			{object}	ResponseBody	"download link issued"
//	@Failure		400			{object}	ResponseBody	"invalid reference or record not ready"
//	@Failure		401			{object}	ResponseBody	"invalid or missing token"
//	@Failure		404			{object}	ResponseBody	"record not found"
//	@Failure		500			{object}	ResponseBody	"misconfiguration or backend failure"
//	@Router			/downloads/{filename} [get]
//	@Router			/records/{id}/download [get]
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ref, refErr := referenceParam(r)
	resp := h.service.Handle(r.Context(), Request{
		Authorization: r.Header.Get("Authorization"),
		Reference:     ref,
		ReferenceErr:  refErr,
	})
	RespondWithJSONPayload(w, resp.StatusCode, resp.Body)
}

// referenceParam returns the decoded filename path parameter, falling back to id.
func referenceParam(r *http.Request) (string, error) {
	ref := chi.URLParam(r, "filename")
	if ref == "" {
		ref = chi.URLParam(r, "id")
	}
	// chi matches against RawPath when it is set, so the param is still escaped
	if r.URL.RawPath == "" {
		return ref, nil
	}
	return url.PathUnescape(ref)
}

// RespondWithJSONPayload sends a JSON response with the given status code
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}
