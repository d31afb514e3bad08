package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"none", LevelNone},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestContextRequestLogger_DefaultsWhenMissing(t *testing.T) {
	if ContextRequestLogger(context.Background()) == nil {
		t.Fatal("expected default logger, got nil")
	}

	// must not panic without a holder in the context
	ContextWithLogAttrs(context.Background(), slog.String("k", "v"))
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(RequestLogging(base))
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		if ContextRequestLogger(r.Context()) == slog.Default() {
			t.Error("expected a request scoped logger")
		}
		ContextWithLogAttrs(r.Context(), slog.String("record_id", "alice@example.com_1"))
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}

	if line["msg"] != "request completed" {
		t.Errorf("unexpected msg: %v", line["msg"])
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Errorf("expected status 404 in log line, got %v", line["status"])
	}
	if line["record_id"] != "alice@example.com_1" {
		t.Errorf("expected record_id attribute in log line, got %v", line["record_id"])
	}
	if line["request_id"] == "" || line["request_id"] == nil {
		t.Error("expected request_id in log line")
	}
}
