// Package jwt provides a bearer token strategy that verifies HMAC-signed
// JWTs against a shared secret.
//
// Verified claims are returned exactly as signed. Numeric claims decode to
// json.Number so that integer values such as exp survive unchanged.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/debug"
)

// DefaultAlgorithm is used when Config.Algorithm is empty.
const DefaultAlgorithm = "HS256"

// Config holds the JWT strategy configuration.
type Config struct {
	// Secret is the HMAC verification key. Required.
	Secret []byte

	// Algorithm is the only signing algorithm accepted. One of HS256,
	// HS384 or HS512. Default: HS256.
	Algorithm string

	// Leeway is the clock-skew tolerance applied to exp, nbf and iat.
	// Default: zero.
	Leeway time.Duration
}

// Strategy verifies bearer tokens from the Authorization header.
// It holds only immutable configuration and is safe for concurrent use.
type Strategy struct {
	secret []byte
	method jwtlib.SigningMethod
	parser *jwtlib.Parser
}

// New creates a JWT strategy. It fails when the secret is empty or the
// algorithm is not an HMAC algorithm.
func New(cfg Config) (*Strategy, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("jwt: leeway must be >= 0, got %s", cfg.Leeway)
	}

	method, ok := jwtlib.GetSigningMethod(cfg.Algorithm).(*jwtlib.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("jwt: unsupported algorithm %q (supported: HS256, HS384, HS512)", cfg.Algorithm)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Strategy{
		secret: secret,
		method: method,
		parser: jwtlib.NewParser(
			jwtlib.WithValidMethods([]string{method.Alg()}),
			jwtlib.WithJSONNumber(),
			jwtlib.WithIssuedAt(),
			jwtlib.WithLeeway(cfg.Leeway),
		),
	}, nil
}

// Algorithm returns the configured signing algorithm.
func (s *Strategy) Algorithm() string {
	return s.method.Alg()
}

// Authenticate extracts a bearer token from the Authorization header and
// verifies it.
//
// Decision outcomes:
//   - Abstain: no Authorization header, a non-bearer scheme, or an empty credential
//   - No: header not made of exactly two fields, or the token fails verification
//   - Yes: verified token, Claims holds the decoded payload
func (s *Strategy) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Unauthenticated()
	}

	parts := strings.Fields(header)
	if len(parts) != 2 {
		return auth.Failed(auth.ErrMalformedHeader)
	}

	scheme, credential := parts[0], parts[1]
	if !strings.EqualFold(scheme, "bearer") {
		return auth.Unauthenticated()
	}
	if credential == "" {
		return auth.Unauthenticated()
	}

	claims, err := s.Verify(credential)
	if err != nil {
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			authErr = auth.ErrInternalVerification.WithCause(err)
		}
		debug.Log("auth", "jwt verification failed", "kind", string(authErr.Kind), "error", err)
		return auth.Failed(authErr)
	}

	return auth.Authenticated(claims)
}

// Verify checks the signature and registered time claims of token and
// returns its payload. Failures are *auth.Error values.
func (s *Strategy) Verify(token string) (auth.Claims, error) {
	parsed, err := s.parser.Parse(token, s.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, auth.ErrInvalidToken
	}

	claims := make(auth.Claims, len(mc))
	for k, v := range mc {
		claims[k] = v
	}
	return claims, nil
}

// Sign encodes claims as a token signed with the configured key and
// algorithm. It performs no validation of the payload.
func (s *Strategy) Sign(claims auth.Claims) (string, error) {
	mc := make(jwtlib.MapClaims, len(claims))
	for k, v := range claims {
		mc[k] = v
	}
	signed, err := jwtlib.NewWithClaims(s.method, mc).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: signing token: %w", err)
	}
	return signed, nil
}

func (s *Strategy) keyFunc(*jwtlib.Token) (any, error) {
	return s.secret, nil
}

// classify maps a parser error onto the auth error taxonomy. Only
// expiry and signature or format failures are client errors; a token
// that is not yet valid (nbf or iat in the future) is an internal
// verification failure. The library wraps every claim failure in
// ErrTokenInvalidClaims, so the specific claim cases come first.
func classify(err error) *auth.Error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return auth.ErrExpiredToken.WithCause(err)
	case errors.Is(err, jwtlib.ErrTokenNotValidYet),
		errors.Is(err, jwtlib.ErrTokenUsedBeforeIssued):
		return auth.ErrInternalVerification.WithCause(err)
	case errors.Is(err, jwtlib.ErrInvalidKey),
		errors.Is(err, jwtlib.ErrInvalidKeyType),
		errors.Is(err, jwtlib.ErrHashUnavailable):
		return auth.ErrInternalVerification.WithCause(err)
	case errors.Is(err, jwtlib.ErrTokenMalformed),
		errors.Is(err, jwtlib.ErrTokenSignatureInvalid),
		errors.Is(err, jwtlib.ErrTokenUnverifiable),
		errors.Is(err, jwtlib.ErrTokenInvalidClaims):
		return auth.ErrInvalidToken.WithCause(err)
	default:
		return auth.ErrInternalVerification.WithCause(err)
	}
}

var _ auth.Strategy = (*Strategy)(nil)
