package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth/authtest"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/download"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/records"
)

func TestVerifyToken(t *testing.T) {
	signer := authtest.NewSigner(t, "kid-1")
	jwks := authtest.NewJWKSServer(t, signer.PublicJWK(t))

	keyCache, err := auth.NewKeyCache(context.Background(),
		auth.NewKeyCacheConfig(5*time.Second, true, time.Minute, time.Hour),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	verifier := auth.NewVerifier(keyCache)

	t.Run("valid", func(t *testing.T) {
		var out bytes.Buffer
		token := signer.Sign(t, authtest.Claims(jwks.Issuer(), "alice@x.com", time.Now().Add(time.Hour)))

		if err := verifyToken(context.Background(), verifier, token, jwks.Issuer(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "email:   alice@x.com") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("expired", func(t *testing.T) {
		var out bytes.Buffer
		token := signer.Sign(t, authtest.Claims(jwks.Issuer(), "alice@x.com", time.Now().Add(-time.Hour)))

		err := verifyToken(context.Background(), verifier, token, jwks.Issuer(), &out)
		if err == nil || !strings.Contains(err.Error(), string(auth.ErrCodeExpired)) {
			t.Errorf("expected an expired rejection, got %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected no output on rejection")
		}
	})
}

func TestRequestLink(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		download.RespondWithJSONPayload(w, http.StatusOK, download.ResponseBody{
			Success:     true,
			DownloadURL: "https://example.com/a.zip",
			Status:      "DONE",
			RecordID:    "alice@x.com_1",
		})
	}))
	defer srv.Close()

	status, body, err := requestLink(context.Background(), srv.Client(), srv.URL+"/", "tok", "alice@x.com_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK || !body.Success || body.RecordID != "alice@x.com_1" {
		t.Errorf("unexpected response %d %+v", status, body)
	}
	if gotPath != "/downloads/alice@x.com_1" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
}

func TestRequestLink_NonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	status, _, err := requestLink(context.Background(), srv.Client(), srv.URL, "tok", "alice@x.com_1")
	if err == nil {
		t.Fatal("expected error for a non-JSON response")
	}
	if status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", status)
	}
}

type mapStore map[records.RecordKey]*records.Record

func (m mapStore) Get(ctx context.Context, key records.RecordKey) (*records.Record, error) {
	if r, ok := m[key]; ok {
		return r, nil
	}
	return nil, records.ErrRecordNotFound
}

func TestShowRecord(t *testing.T) {
	store := mapStore{
		{Identity: "alice@x.com", UploadRef: "1"}: {Key: records.RecordKey{Identity: "alice@x.com", UploadRef: "1"}, ObjectKey: "outputs/a.zip", Status: records.StatusDone},
		{Identity: "alice@x.com", UploadRef: "2"}: {Key: records.RecordKey{Identity: "alice@x.com", UploadRef: "2"}, Status: records.StatusProcessing},
	}
	resolver := records.NewResolver(store)

	tests := []struct {
		name      string
		reference string
		want      string
		wantErr   bool
	}{
		{"ready", "mallory@x.com_1", "object key: outputs/a.zip", false},
		{"processing", "alice@x.com_2", "status:     PROCESSING", false},
		{"absent", "alice@x.com_3", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := showRecord(context.Background(), resolver, "alice@x.com", tt.reference, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, out.String())
			}
		})
	}
}

func TestResponseBodyDecodesServerPayload(t *testing.T) {
	raw := `{"success":false,"message":"Registro não encontrado"}`
	var body download.ResponseBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Message != "Registro não encontrado" {
		t.Errorf("unexpected body %+v", body)
	}
}
