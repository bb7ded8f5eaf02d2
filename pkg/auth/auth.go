package auth

import (
	"context"
	"net/http"
)

// Decision represents the three possible outcomes of an authentication check.
type Decision int

const (
	// Abstain means the strategy found no credentials it can handle (no
	// Authorization header, another scheme, empty token). The request is
	// not authenticated; the routing layer decides whether that is fatal.
	Abstain Decision = iota

	// Yes means the credentials were verified. Claims are attached.
	Yes

	// No means the credentials were present but unusable. The request
	// is rejected with the carried error.
	No
)

// String returns the lowercase decision name used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Claims are the decoded, verified contents of a credential.
type Claims map[string]any

// Subject returns the "sub" claim, or empty string if absent or not a string.
func (c Claims) Subject() string {
	if c == nil {
		return ""
	}
	s, _ := c["sub"].(string)
	return s
}

// Result carries the outcome of one authentication attempt. It is created
// per request and never shared between requests.
type Result struct {
	Decision Decision
	Claims   Claims // populated only when Decision == Yes
	Err      *Error // populated only when Decision == No
}

// Authenticated reports whether the request carried verified credentials.
func (r Result) Authenticated() bool {
	return r.Decision == Yes
}

// Strategy examines request credentials and returns a three-outcome result.
// Implementations hold only immutable configuration and must be safe for
// concurrent use.
type Strategy interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// StrategyFunc adapts an ordinary function to the Strategy interface.
type StrategyFunc func(ctx context.Context, r *http.Request) Result

// Authenticate calls f(ctx, r).
func (f StrategyFunc) Authenticate(ctx context.Context, r *http.Request) Result {
	return f(ctx, r)
}

// Authenticated builds a Yes result with the given claims.
func Authenticated(claims Claims) Result {
	return Result{Decision: Yes, Claims: claims}
}

// Unauthenticated builds an Abstain result.
func Unauthenticated() Result {
	return Result{Decision: Abstain}
}

// Failed builds a No result carrying err.
func Failed(err *Error) Result {
	return Result{Decision: No, Err: err}
}

// Chain evaluates strategies in order.
type Chain struct {
	// Strategies are evaluated left to right.
	Strategies []Strategy

	// Required turns an all-abstain outcome into a No with
	// ErrNotAuthenticated. When false, the Abstain result is returned and
	// handlers run without claims.
	Required bool
}

// Authenticate runs the chain. Stops on the first Yes or No.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, s := range c.Strategies {
		result := s.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.Required {
		return Failed(ErrNotAuthenticated)
	}
	return Unauthenticated()
}
