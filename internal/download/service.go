package download

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/links"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/metrics"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/records"
)

// ErrMissingReference is returned when the request carries neither a filename nor an id.
var ErrMissingReference = errors.New("record reference is required")

// Authenticator verifies the Authorization header of a request (implemented by *auth.Verifier).
type Authenticator interface {
	Verify(ctx context.Context, authorization string, expectedIssuer string) (*auth.Identity, error)
}

// RecordResolver finds the caller's ready record (implemented by *records.Resolver).
type RecordResolver interface {
	Resolve(ctx context.Context, identity string, callerRef string) (*records.Record, error)
}

// LinkIssuer signs a retrieval URL (implemented by *links.Issuer).
type LinkIssuer interface {
	Issue(ctx context.Context, objectKey string) (*links.SignedURL, error)
}

// Request is one download link request.
type Request struct {
	// Authorization is the raw Authorization header value
	Authorization string

	// Reference is the filename or id path parameter: "<identity>_<uploadRef>" or "<anything>_<uploadRef>"
	Reference string

	// ReferenceErr is set when the path parameter could not be decoded
	ReferenceErr error
}

// ResponseBody is the JSON body returned to the caller.
type ResponseBody struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"download_url,omitempty"`
	Status      string `json:"status,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Response is the terminal outcome of a request.
type Response struct {
	StatusCode int
	Body       ResponseBody

	// Outcome labels the response for logs and metrics (e.g. "issued", "not_ready")
	Outcome string
}

// stage is the orchestrator state; transitions only move forward.
type stage string

const (
	stageStart          stage = "start"
	stageAuthenticating stage = "authenticating"
	stageResolving      stage = "resolving"
	stageIssuing        stage = "issuing"
)

// Service orchestrates a download link request.
type Service struct {
	settings Settings
	verifier Authenticator
	resolver RecordResolver
	links    LinkIssuer
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewService creates a Service. A nil recorder disables metrics.
func NewService(settings Settings, verifier Authenticator, resolver RecordResolver, issuer LinkIssuer, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{
		settings: settings,
		verifier: verifier,
		resolver: resolver,
		links:    issuer,
		metrics:  recorder,
		now:      time.Now,
	}
}

// Handle runs the request to completion. It never returns an error: every failure is
// mapped to a Response.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	start := s.now()
	current := stageStart

	respond := func(resp Response) Response {
		logger.ContextWithLogAttrs(ctx, slog.String("outcome", resp.Outcome))
		s.metrics.ObserveDownload(resp.Outcome, s.now().Sub(start).Seconds())
		return resp
	}
	fail := func(err error) Response {
		resp := MapErrorToResponse(ctx, err)
		logger.ContextRequestLogger(ctx).Info("download request rejected",
			slog.String("stage", string(current)),
			slog.String("outcome", resp.Outcome),
			slog.Int("status_code", resp.StatusCode),
			slog.String("error", err.Error()))
		return respond(resp)
	}

	if err := s.settings.Validate(); err != nil {
		return fail(err)
	}

	current = stageAuthenticating
	identity, err := s.verifier.Verify(ctx, req.Authorization, s.settings.Issuer)
	if err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			s.metrics.IncAuthFailure(string(authErr.Code()))
		}
		return fail(err)
	}
	logger.ContextWithLogAttrs(ctx, slog.String("identity", identity.Email))

	current = stageResolving
	if req.ReferenceErr != nil {
		return fail(records.WrapResolveError(req.ReferenceErr, records.ErrCodeInvalidReference, "reference is not validly escaped"))
	}
	if req.Reference == "" {
		return fail(ErrMissingReference)
	}

	record, err := s.resolver.Resolve(ctx, identity.Email, req.Reference)
	if err != nil {
		return fail(err)
	}

	current = stageIssuing
	link, err := s.links.Issue(ctx, record.ObjectKey)
	if err != nil {
		return fail(err)
	}

	logger.ContextRequestLogger(ctx).Info("download link issued",
		slog.String("record_id", record.Key.ID()),
		slog.String("object_key", link.ObjectKey),
		slog.Time("expires_at", link.ExpiresAt))

	return respond(Response{
		StatusCode: http.StatusOK,
		Outcome:    "issued",
		Body: ResponseBody{
			Success:     true,
			DownloadURL: link.URL,
			Status:      string(record.Status),
			RecordID:    record.Key.ID(),
		},
	})
}
