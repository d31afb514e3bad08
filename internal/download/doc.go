// Package download issues download links for artifact records.
//
// **flow**
// Service.Handle runs one request through Authenticating, Resolving and Issuing.
// Each stage runs at most once and the first failure ends the request; nothing
// is retried here.
//
// configuration check -> token verification (auth) -> record resolution (records) -> link issuance (links)
//
// Configuration is checked before the token is looked at, so a misconfigured
// deployment answers 500 to every request.
//
// **errors**
// Every stage returns its own typed error. MapErrorToResponse turns them into the
// HTTP status and the pt-BR message returned to the caller. Details that would
// reveal storage internals are logged, not returned.
package download
