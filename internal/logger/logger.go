// Package logger configures the application slog logger and carries a
// request-scoped logger through the request context.
//
// Handlers retrieve the request logger with ContextRequestLogger and can
// attach attributes to the final "request completed" line with
// ContextWithLogAttrs.
package logger

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

// LevelNone disables all logging (used by tests).
const LevelNone = slog.Level(math.MaxInt32)

type contextKey int

const (
	loggerKey contextKey = iota
	attrsKey
)

// logAttrs collects attributes added during the request. It is shared by
// pointer so middleware further down the chain can append to it.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// InitLogger creates the application logger and installs it as the slog default.
//
// dev and test environments get human readable coloured output (tint),
// everything else logs JSON.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler

	switch environment {
	case "dev", "test":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// ParseLogLevel converts a LOG_LEVEL value to a slog.Level.
// Unknown values default to info; "none" silences the logger.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// ContextWithRequestLogger returns a copy of ctx carrying l.
func ContextWithRequestLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// ContextRequestLogger returns the request logger stored in ctx, or the default logger.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs adds attributes to the final request log line.
// It is a no-op when the context was not created by RequestLogging.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	holder, ok := ctx.Value(attrsKey).(*logAttrs)
	if !ok {
		return
	}
	holder.mu.Lock()
	holder.attrs = append(holder.attrs, attrs...)
	holder.mu.Unlock()
}

// RequestLogging creates a request-scoped logger (tagged with the chi request id)
// and logs one line per request once the response has been written.
//
// Must be installed after middleware.RequestID.
func RequestLogging(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := base.With(
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			holder := &logAttrs{}
			ctx := ContextWithRequestLogger(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, attrsKey, holder)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			holder.mu.Lock()
			args := make([]any, 0, len(holder.attrs)+2)
			args = append(args,
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			)
			for _, a := range holder.attrs {
				args = append(args, a)
			}
			holder.mu.Unlock()

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			reqLogger.Log(r.Context(), level, "request completed", args...)
		})
	}
}
