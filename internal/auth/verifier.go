package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	bearerPrefix = "Bearer "

	// emailClaim carries the caller identity (present in Cognito ID tokens).
	emailClaim = "email"
)

// Identity is the caller identity extracted from a verified token.
type Identity struct {
	// Email is the verified email claim. Records are keyed by this value.
	Email string

	// Subject is the sub claim, if present (logging only)
	Subject string

	// KeyID is the kid of the key that verified the token
	KeyID string
}

// Verifier validates identity tokens.
type Verifier struct {
	keys    SigningKeySource
	allowed []jwa.SignatureAlgorithm
	now     func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithAllowedAlgorithms replaces the default allow-list (RS256).
func WithAllowedAlgorithms(algs ...jwa.SignatureAlgorithm) VerifierOption {
	return func(v *Verifier) {
		v.allowed = algs
	}
}

// WithClock sets the time source used for the expiry check.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a Verifier that resolves signing keys from keys.
func NewVerifier(keys SigningKeySource, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		keys:    keys,
		allowed: []jwa.SignatureAlgorithm{jwa.RS256()},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, error) {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return "", NewAuthError(ErrCodeMalformedToken, "missing or malformed bearer token")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	if token == "" || strings.Count(token, ".") != 2 {
		return "", NewAuthError(ErrCodeMalformedToken, "missing or malformed bearer token")
	}
	return token, nil
}

// Verify authenticates the Authorization header against expectedIssuer and returns the caller identity.
// Every rejection is an *AuthError.
func (v *Verifier) Verify(ctx context.Context, authorization string, expectedIssuer string) (*Identity, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return nil, err
	}

	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeMalformedToken, "token could not be parsed")
	}

	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return nil, NewAuthError(ErrCodeMalformedToken, fmt.Sprintf("expected one signature, got %d", len(sigs)))
	}
	headers := sigs[0].ProtectedHeaders()

	alg, ok := headers.Algorithm()
	if !ok {
		return nil, NewAuthError(ErrCodeMalformedToken, "alg is required in token header")
	}
	if !v.isAllowed(alg) {
		return nil, NewAuthError(ErrCodeUnsupportedAlgorithm, fmt.Sprintf("algorithm not accepted: %s", alg))
	}

	kid, ok := headers.KeyID()
	if !ok || kid == "" {
		return nil, NewAuthError(ErrCodeMalformedToken, "kid is required in token header")
	}

	key, err := v.keys.GetKey(ctx, expectedIssuer, kid)
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeKeyUnavailable, "signing key unavailable")
	}

	pub, err := verificationKey(key, alg)
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeKeyUnavailable, "signing key unusable")
	}

	if _, err := jws.Verify([]byte(raw), jws.WithKey(alg, pub)); err != nil {
		return nil, WrapAuthError(err, ErrCodeSignatureInvalid, "signature verification failed")
	}

	// claims are validated below so each failure maps to its own code
	token, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, WrapAuthError(err, ErrCodeMalformedToken, "token claims could not be parsed")
	}

	issuer, _ := token.Issuer()
	if issuer != expectedIssuer {
		return nil, NewAuthError(ErrCodeIssuerMismatch, fmt.Sprintf("unexpected issuer: %q", issuer))
	}

	expiry, ok := token.Expiration()
	if !ok {
		return nil, NewAuthError(ErrCodeExpired, "token has no expiry")
	}
	if !v.now().Before(expiry) {
		return nil, NewAuthError(ErrCodeExpired, fmt.Sprintf("token expired at %s", expiry.UTC().Format(time.RFC3339)))
	}

	var email string
	if err := token.Get(emailClaim, &email); err != nil || strings.TrimSpace(email) == "" {
		return nil, NewAuthError(ErrCodeMissingIdentity, "token has no email claim")
	}

	subject, _ := token.Subject()

	return &Identity{
		Email:   email,
		Subject: subject,
		KeyID:   kid,
	}, nil
}

func (v *Verifier) isAllowed(alg jwa.SignatureAlgorithm) bool {
	for _, a := range v.allowed {
		if a.String() == alg.String() {
			return true
		}
	}
	return false
}
