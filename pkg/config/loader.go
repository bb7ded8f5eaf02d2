package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AUTHGATE_CONFIG env, ./config.yaml, /etc/authgate/config.yaml)
//  3. AUTHGATE_* environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. AUTHGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/authgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("AUTHGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/authgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envBinding maps one AUTHGATE_* variable onto a config field.
type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"AUTHGATE_PORT", func(c *Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"AUTHGATE_STORAGE", func(c *Config, v string) error { c.Storage.Type = v; return nil }},
	{"AUTHGATE_POSTGRES_DSN", func(c *Config, v string) error { c.Storage.Postgres.DSN = v; return nil }},
	{"AUTHGATE_AUTH_STRATEGY", func(c *Config, v string) error { c.Auth.Strategy = v; return nil }},
	{"AUTHGATE_AUTH_REQUIRED", func(c *Config, v string) error { return setBool(&c.Auth.Required, v) }},
	{"AUTHGATE_JWT_SECRET", func(c *Config, v string) error { c.Auth.JWT.Secret = v; return nil }},
	{"AUTHGATE_JWT_ALGORITHM", func(c *Config, v string) error { c.Auth.JWT.Algorithm = v; return nil }},
	{"AUTHGATE_JWT_LEEWAY", func(c *Config, v string) error { return setDuration(&c.Auth.JWT.Leeway, v) }},
	{"AUTHGATE_RATE_LIMIT_RPM", func(c *Config, v string) error { return setInt(&c.Auth.RateLimit.RequestsPerMinute, v) }},
	{"AUTHGATE_METRICS_ENABLED", func(c *Config, v string) error { return setBool(&c.Observability.Metrics.Enabled, v) }},
	{"AUTHGATE_LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
}

// applyEnvOverrides maps AUTHGATE_* environment variables to config fields.
// Malformed numeric, boolean, or duration values are reported instead of
// being ignored.
func applyEnvOverrides(cfg *Config) error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
