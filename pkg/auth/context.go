package auth

import "context"

// claimsKey is a private type for the claims context key.
type claimsKey struct{}

// SetClaims stores verified claims in the context.
func SetClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext retrieves the verified claims.
// The boolean is false when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok && c != nil
}
