// JWK helpers for the identity provider's published signing keys.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc7517 (JSON Web Key standard)
//
// these functions are used by keycache.go to locate an issuer's key set and by
// verifier.go to convert a JWK to the native key type for signature verification.

package auth

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// jwksPath is where OIDC-style issuers (including Cognito user pools) publish their keys.
const jwksPath = "/.well-known/jwks.json"

// JWKSURL returns the key set endpoint for an issuer,
// e.g. https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc/.well-known/jwks.json
func JWKSURL(issuer string) string {
	return strings.TrimRight(issuer, "/") + jwksPath
}

// JWKToRSAPublicKey converts a JWK to an RSA public key using lestrrat-go/jwx
func JWKToRSAPublicKey(key jwk.Key) (*rsa.PublicKey, error) {
	if key == nil {
		return nil, fmt.Errorf("key is nil")
	}

	var raw any
	// Export to raw key
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export RSA public key: %w", err)
	}

	rsaPublicKey, ok := raw.(*rsa.PublicKey)
	if !ok {
		alg, _ := key.Algorithm()
		return nil, fmt.Errorf("expected RSA public key but got key with algorithm %v and type %T", alg, raw)
	}

	return rsaPublicKey, nil
}

// verificationKey returns the native public key used to check a signature made with alg.
//
// The JWK must be of the type the algorithm requires and, when the JWK declares its own alg,
// it must match the token header.
func verificationKey(key jwk.Key, alg jwa.SignatureAlgorithm) (any, error) {
	if keyAlg, ok := key.Algorithm(); ok && keyAlg.String() != alg.String() {
		return nil, fmt.Errorf("key is published for %s, token is signed with %s", keyAlg, alg)
	}

	switch alg.String() {
	case jwa.RS256().String(), jwa.RS384().String(), jwa.RS512().String():
		return JWKToRSAPublicKey(key)
	default:
		return nil, fmt.Errorf("no verification key type for algorithm %s", alg)
	}
}
