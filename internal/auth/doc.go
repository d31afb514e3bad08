// Package auth authenticates download requests.
//
// **verification**
// The Verifier accepts a Bearer token from the Authorization header and checks, in order:
// the token is a single-signature JWS, its alg is in the configured allow-list (RS256),
// its kid resolves to a published key of the expected issuer, the signature verifies,
// iss matches the expected issuer, exp is in the future and an email claim is present.
// The only thing returned to callers is the verified email; nothing else in the request
// is trusted to identify the caller.
//
// **keys**
// KeyCache implements SigningKeySource. Key sets are fetched from {issuer}/.well-known/jwks.json
// on a kid miss and cached per issuer, so routine key rotation is picked up without a restart.
//
// **errors**
// Every rejection is an *AuthError carrying an ErrorCode. The download layer maps all
// of them to 401; the codes exist for logging and tests.
package auth
