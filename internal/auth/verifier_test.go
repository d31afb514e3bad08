package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth/authtest"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

const testIssuer = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test"

// stubKeySource is a SigningKeySource that counts lookups
type stubKeySource struct {
	mu    sync.Mutex
	keys  map[string]jwk.Key
	err   error
	calls int
}

func (s *stubKeySource) GetKey(ctx context.Context, issuer, keyID string) (jwk.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	key, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return key, nil
}

func (s *stubKeySource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func requireAuthCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError with code %s, got %v", want, err)
	}
	if authErr.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, authErr.Code(), err)
	}
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	signer := authtest.NewSigner(t, "kid-1")
	impostor := authtest.NewSigner(t, "kid-1") // same kid, different key

	keys := &stubKeySource{keys: map[string]jwk.Key{"kid-1": signer.PublicJWK(t)}}
	verifier := NewVerifier(keys, WithClock(func() time.Time { return now }))

	validClaims := func() map[string]any {
		return authtest.Claims(testIssuer, "alice@x.com", now.Add(time.Hour))
	}

	tests := []struct {
		name          string
		authorization func() string
		wantCode      ErrorCode
		wantKeyLookup bool
	}{
		{
			name:          "missing header",
			authorization: func() string { return "" },
			wantCode:      ErrCodeMalformedToken,
		},
		{
			name:          "not a bearer credential",
			authorization: func() string { return "Basic YWxpY2U6c2VjcmV0" },
			wantCode:      ErrCodeMalformedToken,
		},
		{
			name:          "bearer without a compact token",
			authorization: func() string { return "Bearer abc" },
			wantCode:      ErrCodeMalformedToken,
		},
		{
			name:          "bearer with garbage segments",
			authorization: func() string { return "Bearer a.b.c" },
			wantCode:      ErrCodeMalformedToken,
		},
		{
			name: "HS256 substitution is rejected before key lookup",
			authorization: func() string {
				return "Bearer " + signer.SignWithHeader(t, map[string]any{"alg": "HS256", "kid": "kid-1", "typ": "JWT"}, validClaims())
			},
			wantCode: ErrCodeUnsupportedAlgorithm,
		},
		{
			name: "missing kid",
			authorization: func() string {
				return "Bearer " + signer.SignWithHeader(t, map[string]any{"alg": "RS256", "typ": "JWT"}, validClaims())
			},
			wantCode: ErrCodeMalformedToken,
		},
		{
			name: "unknown kid",
			authorization: func() string {
				other := authtest.NewSigner(t, "kid-unknown")
				return "Bearer " + other.Sign(t, validClaims())
			},
			wantCode:      ErrCodeKeyUnavailable,
			wantKeyLookup: true,
		},
		{
			name: "signed by a different key",
			authorization: func() string {
				return "Bearer " + impostor.Sign(t, validClaims())
			},
			wantCode:      ErrCodeSignatureInvalid,
			wantKeyLookup: true,
		},
		{
			name: "tampered payload",
			authorization: func() string {
				token := signer.Sign(t, validClaims())
				forged := signer.Sign(t, authtest.Claims(testIssuer, "mallory@x.com", now.Add(time.Hour)))
				parts := strings.Split(token, ".")
				forgedParts := strings.Split(forged, ".")
				return "Bearer " + parts[0] + "." + forgedParts[1] + "." + parts[2]
			},
			wantCode:      ErrCodeSignatureInvalid,
			wantKeyLookup: true,
		},
		{
			name: "issuer mismatch",
			authorization: func() string {
				return "Bearer " + signer.Sign(t, authtest.Claims("https://evil.example.com", "alice@x.com", now.Add(time.Hour)))
			},
			wantCode:      ErrCodeIssuerMismatch,
			wantKeyLookup: true,
		},
		{
			name: "issuer differs only by trailing slash",
			authorization: func() string {
				return "Bearer " + signer.Sign(t, authtest.Claims(testIssuer+"/", "alice@x.com", now.Add(time.Hour)))
			},
			wantCode:      ErrCodeIssuerMismatch,
			wantKeyLookup: true,
		},
		{
			name: "expired",
			authorization: func() string {
				return "Bearer " + signer.Sign(t, authtest.Claims(testIssuer, "alice@x.com", now.Add(-time.Second)))
			},
			wantCode:      ErrCodeExpired,
			wantKeyLookup: true,
		},
		{
			name: "no expiry",
			authorization: func() string {
				claims := validClaims()
				delete(claims, "exp")
				return "Bearer " + signer.Sign(t, claims)
			},
			wantCode:      ErrCodeExpired,
			wantKeyLookup: true,
		},
		{
			name: "no email claim",
			authorization: func() string {
				claims := validClaims()
				delete(claims, "email")
				return "Bearer " + signer.Sign(t, claims)
			},
			wantCode:      ErrCodeMissingIdentity,
			wantKeyLookup: true,
		},
		{
			name: "validly signed but non-numeric expiry",
			authorization: func() string {
				claims := validClaims()
				claims["exp"] = "tomorrow"
				return "Bearer " + signer.Sign(t, claims)
			},
			wantCode:      ErrCodeMalformedToken,
			wantKeyLookup: true,
		},
		{
			name: "empty email claim",
			authorization: func() string {
				claims := validClaims()
				claims["email"] = ""
				return "Bearer " + signer.Sign(t, claims)
			},
			wantCode:      ErrCodeMissingIdentity,
			wantKeyLookup: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := keys.callCount()

			identity, err := verifier.Verify(context.Background(), tt.authorization(), testIssuer)
			if identity != nil {
				t.Errorf("expected no identity, got %+v", identity)
			}
			requireAuthCode(t, err, tt.wantCode)

			looked := keys.callCount() > before
			if looked != tt.wantKeyLookup {
				t.Errorf("key lookup performed = %v, want %v", looked, tt.wantKeyLookup)
			}
		})
	}
}

func TestVerifier_NoneAlgorithmNeverReachesKeyLookup(t *testing.T) {
	signer := authtest.NewSigner(t, "kid-1")
	keys := &stubKeySource{keys: map[string]jwk.Key{"kid-1": signer.PublicJWK(t)}}
	verifier := NewVerifier(keys)

	token := signer.SignWithHeader(t, map[string]any{"alg": "none", "kid": "kid-1"},
		authtest.Claims(testIssuer, "alice@x.com", time.Now().Add(time.Hour)))

	_, err := verifier.Verify(context.Background(), "Bearer "+token, testIssuer)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
	if authErr.Code() != ErrCodeUnsupportedAlgorithm && authErr.Code() != ErrCodeMalformedToken {
		t.Errorf("expected unsupported_algorithm or malformed_token, got %s", authErr.Code())
	}
	if keys.callCount() != 0 {
		t.Errorf("expected no key lookup, got %d", keys.callCount())
	}
}

func TestVerifier_ValidToken(t *testing.T) {
	now := time.Now()
	signer := authtest.NewSigner(t, "kid-1")
	keys := &stubKeySource{keys: map[string]jwk.Key{"kid-1": signer.PublicJWK(t)}}
	verifier := NewVerifier(keys)

	claims := authtest.Claims(testIssuer, "alice@x.com", now.Add(time.Hour))
	// audience is not checked
	claims["aud"] = "an-unrelated-client"

	identity, err := verifier.Verify(context.Background(), "Bearer "+signer.Sign(t, claims), testIssuer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Email != "alice@x.com" {
		t.Errorf("expected email alice@x.com, got %s", identity.Email)
	}
	if identity.KeyID != "kid-1" {
		t.Errorf("expected kid kid-1, got %s", identity.KeyID)
	}
	if identity.Subject != "sub-alice@x.com" {
		t.Errorf("unexpected subject %s", identity.Subject)
	}
}

func TestVerifier_KeyRetrievalFailure(t *testing.T) {
	signer := authtest.NewSigner(t, "kid-1")
	keys := &stubKeySource{err: &KeyRetrievalError{Issuer: testIssuer, Err: context.DeadlineExceeded}}
	verifier := NewVerifier(keys)

	token := signer.Sign(t, authtest.Claims(testIssuer, "alice@x.com", time.Now().Add(time.Hour)))
	_, err := verifier.Verify(context.Background(), "Bearer "+token, testIssuer)

	requireAuthCode(t, err, ErrCodeKeyUnavailable)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the collaborator timeout to be preserved in the error chain, got %v", err)
	}
}

func TestVerifier_WithKeyCacheAndJWKSEndpoint(t *testing.T) {
	signer := authtest.NewSigner(t, "kid-1")
	jwks := authtest.NewJWKSServer(t, signer.PublicJWK(t))
	verifier := NewVerifier(newTestKeyCache(t, false))

	token := signer.Sign(t, authtest.Claims(jwks.Issuer(), "bob@x.com", time.Now().Add(time.Hour)))

	for i := range 2 {
		identity, err := verifier.Verify(context.Background(), "Bearer "+token, jwks.Issuer())
		if err != nil {
			t.Fatalf("verify %d: unexpected error: %v", i, err)
		}
		if identity.Email != "bob@x.com" {
			t.Errorf("verify %d: expected bob@x.com, got %s", i, identity.Email)
		}
	}

	if jwks.Fetches() != 1 {
		t.Errorf("expected a single JWKS fetch, got %d", jwks.Fetches())
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer a.b.c", "a.b.c", false},
		{"Bearer  a.b.c ", "a.b.c", false},
		{"bearer a.b.c", "", true},
		{"Bearer", "", true},
		{"Bearer a.b", "", true},
		{"Bearer a.b.c.d", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BearerToken(%q): expected error", tt.header)
			}
			continue
		}
		if err != nil {
			t.Errorf("BearerToken(%q): unexpected error %v", tt.header, err)
		}
		if got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
