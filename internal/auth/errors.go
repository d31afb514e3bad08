package auth

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why a presented token was rejected.
type ErrorCode string

const (
	// ErrCodeMalformedToken: the Authorization header is missing, is not a Bearer credential,
	// or the token is not a JWS compact serialization with a usable header.
	ErrCodeMalformedToken ErrorCode = "malformed_token"

	// ErrCodeUnsupportedAlgorithm: the alg in the token header is not in the verifier's allowed set.
	ErrCodeUnsupportedAlgorithm ErrorCode = "unsupported_algorithm"

	// ErrCodeKeyUnavailable: the signing key could not be found or retrieved from the issuer.
	ErrCodeKeyUnavailable ErrorCode = "key_unavailable"

	// ErrCodeSignatureInvalid: the signature does not verify with the issuer's key.
	ErrCodeSignatureInvalid ErrorCode = "signature_invalid"

	// ErrCodeExpired: the token has no expiry or has expired.
	ErrCodeExpired ErrorCode = "expired"

	// ErrCodeIssuerMismatch: the iss claim is not the expected issuer.
	ErrCodeIssuerMismatch ErrorCode = "issuer_mismatch"

	// ErrCodeMissingIdentity: the token verified but carries no email claim.
	ErrCodeMissingIdentity ErrorCode = "missing_identity"
)

// AuthError is returned by the Verifier for every rejected token.
type AuthError struct {

	// code is the rejection reason
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *AuthError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *AuthError) Code() ErrorCode { return e.code }
func (e *AuthError) Unwrap() error   { return e.wrapped }

// NewAuthError creates an AuthError with the given code.
func NewAuthError(code ErrorCode, msg string) error {
	return &AuthError{code: code, message: msg}
}

// WrapAuthError wraps an existing error as an AuthError with the given code.
func WrapAuthError(err error, code ErrorCode, msg string) error {
	return &AuthError{code: code, message: msg, wrapped: err}
}

// ErrKeyNotFound is returned by a SigningKeySource when the issuer's
// published key set (after a refresh) does not contain the requested kid.
var ErrKeyNotFound = errors.New("signing key not found")

// KeyRetrievalError is returned by a SigningKeySource when the issuer's key set
// could not be fetched or parsed. It is distinct from ErrKeyNotFound.
type KeyRetrievalError struct {
	Issuer string
	Err    error
}

func (e *KeyRetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve signing keys for issuer %s: %v", e.Issuer, e.Err)
}

func (e *KeyRetrievalError) Unwrap() error { return e.Err }
