// Package auth provides pluggable request authentication for authgate.
//
// A Strategy inspects a request and votes: Yes (credentials verified,
// claims attached to the result), Abstain (no credentials it can handle),
// or No (credentials present but malformed, invalid, or expired). A No
// carries an *Error with the HTTP status to answer with.
//
// Strategies are composed into a Chain and run as HTTP middleware, which
// places verified claims in the request context for downstream handlers.
// Concrete strategies live in subpackages (auth/jwt) and are selected at
// configuration time through auth/factory.
package auth
