// Package factory builds authentication strategies from configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/auth/jwt"
)

// Kind names a registered strategy.
type Kind string

const (
	// KindJWT verifies HMAC-signed bearer tokens.
	KindJWT Kind = "jwt"
)

// Kinds lists every registered strategy kind.
var Kinds = []Kind{KindJWT}

// Config holds the settings for every strategy kind. Only the section
// matching the requested kind is read.
type Config struct {
	JWT jwt.Config
}

// ParseKind resolves a strategy name. Unregistered names fail with an
// error matching auth.ErrUnknownStrategy.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", auth.ErrUnknownStrategy.WithCause(
		fmt.Errorf("%q (registered: %s)", name, registered()))
}

// New constructs the strategy for kind.
func New(kind Kind, cfg Config) (auth.Strategy, error) {
	switch kind {
	case KindJWT:
		s, err := jwt.New(cfg.JWT)
		if err != nil {
			return nil, fmt.Errorf("building %s strategy: %w", kind, err)
		}
		return s, nil
	default:
		return nil, auth.ErrUnknownStrategy.WithCause(fmt.Errorf("%q", kind))
	}
}

// Get looks up a strategy by name and constructs it.
func Get(name string, cfg Config) (auth.Strategy, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return New(kind, cfg)
}

func registered() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
