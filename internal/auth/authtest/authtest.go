// Package authtest provides an RSA token signer and an httptest JWKS endpoint
// for tests that need real, verifiable identity tokens.
package authtest

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Signer mints RS256 tokens with a freshly generated key.
type Signer struct {
	Key   *rsa.PrivateKey
	KeyID string
}

// NewSigner generates a 2048 bit RSA key identified by kid.
func NewSigner(t testing.TB, kid string) *Signer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return &Signer{Key: key, KeyID: kid}
}

// Claims returns a claim set accepted by the verifier for the given issuer and email.
func Claims(issuer, email string, expiry time.Time) map[string]any {
	return map[string]any{
		"iss":       issuer,
		"sub":       "sub-" + email,
		"email":     email,
		"aud":       "some-app-client",
		"token_use": "id",
		"iat":       time.Now().Add(-time.Minute).Unix(),
		"exp":       expiry.Unix(),
	}
}

// Sign returns a compact RS256 JWS with the signer's kid.
func (s *Signer) Sign(t testing.TB, claims map[string]any) string {
	t.Helper()
	return s.SignWithHeader(t, map[string]any{"alg": "RS256", "kid": s.KeyID, "typ": "JWT"}, claims)
}

// SignWithHeader signs claims using the alg named in header:
// RS256 uses the RSA key, HS256 uses the RSA modulus bytes as an HMAC secret
// (the classic algorithm substitution attack) and "none" produces an empty signature.
func (s *Signer) SignWithHeader(t testing.TB, header map[string]any, claims map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("failed to marshal header: %v", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	var sig []byte
	switch header["alg"] {
	case "RS256":
		digest := sha256.Sum256([]byte(signingInput))
		sig, err = rsa.SignPKCS1v15(rand.Reader, s.Key, crypto.SHA256, digest[:])
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
	case "HS256":
		mac := hmac.New(sha256.New, s.Key.PublicKey.N.Bytes())
		mac.Write([]byte(signingInput))
		sig = mac.Sum(nil)
	case "none":
		sig = nil
	default:
		t.Fatalf("unsupported test alg: %v", header["alg"])
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

// PublicJWK returns the signer's public key as a JWK with kid, alg and use set.
func (s *Signer) PublicJWK(t testing.TB) jwk.Key {
	t.Helper()

	key, err := jwk.Import(&s.Key.PublicKey)
	if err != nil {
		t.Fatalf("failed to create JWK from RSA public key: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, s.KeyID); err != nil {
		t.Fatalf("failed to set key ID: %v", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		t.Fatalf("failed to set algorithm: %v", err)
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		t.Fatalf("failed to set key usage: %v", err)
	}
	return key
}

// JWKSServer serves {URL}/.well-known/jwks.json and counts fetches.
// Its URL is usable as the token issuer.
type JWKSServer struct {
	*httptest.Server

	mu      sync.Mutex
	keys    []jwk.Key
	fetches atomic.Int32
	failing atomic.Bool
}

// NewJWKSServer starts a JWKS endpoint publishing keys. It is closed when the test ends.
func NewJWKSServer(t testing.TB, keys ...jwk.Key) *JWKSServer {
	t.Helper()

	s := &JWKSServer{keys: keys}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Issuer returns the issuer whose key set this server publishes.
func (s *JWKSServer) Issuer() string {
	return s.URL
}

// SetKeys replaces the published key set (key rotation).
func (s *JWKSServer) SetKeys(keys ...jwk.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

// SetFailing makes the endpoint return 500 with a non-JSON body.
func (s *JWKSServer) SetFailing(failing bool) {
	s.failing.Store(failing)
}

// Fetches returns how many times the key set was requested.
func (s *JWKSServer) Fetches() int {
	return int(s.fetches.Load())
}

func (s *JWKSServer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	s.fetches.Add(1)

	if s.failing.Load() {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
		return
	}

	set := jwk.NewSet()
	s.mu.Lock()
	for _, k := range s.keys {
		if err := set.AddKey(k); err != nil {
			s.mu.Unlock()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(set); err != nil {
		http.Error(w, "Failed to encode JWK set", http.StatusInternalServerError)
	}
}
