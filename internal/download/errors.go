package download

// errors.go maps the typed errors of each stage to the status code and pt-BR
// message returned to the caller. Full error details are only logged.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/links"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/records"
)

const (
	msgUnauthorized     = "Não autorizado: %s"
	msgMissingSetting   = "Variável de ambiente %s não configurada"
	msgMissingReference = "Parâmetro id/filename ausente"
	msgInvalidReference = "Formato de ID inválido: esperado <email>_<uploadId>"
	msgRecordNotFound   = "Registro não encontrado"
	msgRecordNotReady   = "Registro encontrado com status %s, sem arquivo disponível ainda"
	msgStoreUnavailable = "Erro ao consultar banco"
	msgLinkUnavailable  = "Erro ao gerar URL"
	msgInternalError    = "Erro interno"
)

// authReasons are the caller-facing reasons for each rejected token
var authReasons = map[auth.ErrorCode]string{
	auth.ErrCodeMalformedToken:       "Token JWT ausente ou mal formatado.",
	auth.ErrCodeUnsupportedAlgorithm: "algoritmo de assinatura não permitido",
	auth.ErrCodeKeyUnavailable:       "chave de assinatura não encontrada",
	auth.ErrCodeSignatureInvalid:     "assinatura inválida",
	auth.ErrCodeExpired:              "token expirado",
	auth.ErrCodeIssuerMismatch:       "emissor do token inválido",
	auth.ErrCodeMissingIdentity:      "token sem e-mail",
}

// MapErrorToResponse maps an error from any stage to the response returned to the caller.
//
// Unmapped error types are a bug: they are logged and answered with 500.
func MapErrorToResponse(ctx context.Context, err error) Response {
	var configErr *ConfigurationError
	if errors.As(err, &configErr) {
		return failure(http.StatusInternalServerError, "config_error", fmt.Sprintf(msgMissingSetting, configErr.Setting))
	}

	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		reason, ok := authReasons[authErr.Code()]
		if !ok {
			reason = "token inválido"
		}
		return failure(http.StatusUnauthorized, "unauthorized", fmt.Sprintf(msgUnauthorized, reason))
	}

	if errors.Is(err, ErrMissingReference) {
		return failure(http.StatusBadRequest, "missing_reference", msgMissingReference)
	}

	var resolveErr *records.ResolveError
	if errors.As(err, &resolveErr) {
		switch resolveErr.Code() {
		case records.ErrCodeInvalidReference:
			return failure(http.StatusBadRequest, "invalid_reference", msgInvalidReference)
		case records.ErrCodeNotFound:
			return failure(http.StatusNotFound, "not_found", msgRecordNotFound)
		case records.ErrCodeNotReady:
			resp := failure(http.StatusBadRequest, "not_ready", fmt.Sprintf(msgRecordNotReady, resolveErr.Status()))
			resp.Body.Status = resolveErr.Status().String()
			return resp
		case records.ErrCodeStoreUnavailable:
			return failure(http.StatusInternalServerError, "store_unavailable", msgStoreUnavailable)
		}
	}

	var issueErr *links.IssueError
	if errors.As(err, &issueErr) {
		return failure(http.StatusInternalServerError, "link_unavailable", msgLinkUnavailable)
	}

	logger.ContextRequestLogger(ctx).Error("BUG: Unmapped error type in MapErrorToResponse",
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("error", err.Error()))
	return failure(http.StatusInternalServerError, "internal_error", msgInternalError)
}

func failure(statusCode int, outcome, message string) Response {
	return Response{
		StatusCode: statusCode,
		Outcome:    outcome,
		Body: ResponseBody{
			Success: false,
			Message: message,
		},
	}
}
