package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Every problem is reported, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
	}

	// Strategy names are checked by the factory at startup; only the
	// settings of the jwt strategy are validated here.
	if c.Auth.Strategy == "" {
		errs = append(errs, fmt.Errorf("auth.strategy is required"))
	}
	if c.Auth.Strategy == "jwt" {
		if c.Auth.JWT.Secret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.strategy is \"jwt\""))
		}
		switch c.Auth.JWT.Algorithm {
		case "HS256", "HS384", "HS512":
			// valid
		default:
			errs = append(errs, fmt.Errorf("auth.jwt.algorithm must be HS256, HS384, or HS512, got %q", c.Auth.JWT.Algorithm))
		}
		if c.Auth.JWT.Leeway < 0 {
			errs = append(errs, fmt.Errorf("auth.jwt.leeway must be >= 0, got %s", c.Auth.JWT.Leeway))
		}
	}

	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0, got %d", c.Auth.RateLimit.RequestsPerMinute))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
