// Command server runs the authgate users API.
//
// Configuration is read from a YAML file (see -config) and AUTHGATE_*
// environment variables. A .env file in the working directory is loaded
// first when present.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/auth/factory"
	"github.com/mmorady/authgate/pkg/auth/jwt"
	"github.com/mmorady/authgate/pkg/config"
	"github.com/mmorady/authgate/pkg/debug"
	"github.com/mmorady/authgate/pkg/storage/memory"
	"github.com/mmorady/authgate/pkg/storage/postgres"
	"github.com/mmorady/authgate/pkg/transport"
	transporthttp "github.com/mmorady/authgate/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	store, err := newStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	strategy, err := factory.Get(cfg.Auth.Strategy, factory.Config{
		JWT: jwt.Config{
			Secret:    []byte(cfg.Auth.JWT.Secret),
			Algorithm: cfg.Auth.JWT.Algorithm,
			Leeway:    cfg.Auth.JWT.Leeway,
		},
	})
	if err != nil {
		return fmt.Errorf("creating auth strategy: %w", err)
	}

	chain := &auth.Chain{
		Strategies: []auth.Strategy{strategy},
		Required:   cfg.Auth.Required,
	}

	var limiter auth.RateLimiter
	if rpm := cfg.Auth.RateLimit.RequestsPerMinute; rpm > 0 {
		limiter = auth.NewInProcessLimiter(rpm)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithAuth(chain, limiter),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth_strategy", cfg.Auth.Strategy,
		"auth_required", cfg.Auth.Required,
		"jwt_algorithm", cfg.Auth.JWT.Algorithm,
		"rate_limit_rpm", cfg.Auth.RateLimit.RequestsPerMinute,
	)

	return transporthttp.NewServer(store, opts...).ListenAndServe()
}

func newStore(cfg config.StorageConfig) (transport.UserStore, error) {
	switch cfg.Type {
	case "postgres":
		store, err := postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	default:
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	}
}
