package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/download"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
)

// RequestSizeLimit returns a middleware that enforces a maximum request body size.
//
// Requests whose Content-Length exceeds maxBytes are rejected immediately with 413.
// Otherwise the body is wrapped in a MaxBytesReader in case Content-Length is absent or wrong.
// The X-Max-Request-Size header is added to every response.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Max-Request-Size", strconv.FormatInt(maxBytes, 10))

			if r.ContentLength > maxBytes {
				logger.ContextRequestLogger(r.Context()).Warn("Request body too large",
					slog.Int64("content_length", r.ContentLength),
					slog.Int64("max_bytes", maxBytes))
				download.RespondWithJSONPayload(w, http.StatusRequestEntityTooLarge, download.ResponseBody{
					Success: false,
					Message: fmt.Sprintf("Corpo da requisição excede o limite de %d bytes", maxBytes),
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds security-related headers to all responses
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")

			if environment == "prod" || environment == "staging" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per second. If requestsPerSecond <= 0, rate limiting is disabled.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				reqLogger := logger.ContextRequestLogger(r.Context())

				reqLogger.Warn("Rate limit exceeded",
					slog.String("component", "RateLimit"),
					slog.String("remote_addr", r.RemoteAddr),
				)

				// Add context for final request log
				logger.ContextWithLogAttrs(r.Context(),
					slog.String("remote_addr", r.RemoteAddr),
				)

				download.RespondWithJSONPayload(w, http.StatusTooManyRequests, download.ResponseBody{
					Success: false,
					Message: "Muitas requisições. Tente novamente mais tarde.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
