// Package postgres provides a PostgreSQL implementation of transport.UserStore.
// It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmorady/authgate/pkg/api"
	"github.com/mmorady/authgate/pkg/debug"
	"github.com/mmorady/authgate/pkg/storage"
	"github.com/mmorady/authgate/pkg/transport"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// defaultMaxConns caps the pool when Config.MaxConns is unset.
const defaultMaxConns = 10

// Config holds the store settings read from storage.postgres.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxConns caps the connection pool. Zero means defaultMaxConns.
	MaxConns int32

	// MigrateOnStart applies the embedded migrations before serving.
	MigrateOnStart bool
}

// Store is a PostgreSQL-backed UserStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.UserStore at compile time.
var _ transport.UserStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// poolConfig parses the DSN and applies the pool size.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = defaultMaxConns
	}
	return poolCfg, nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, in api.UserInput) (*api.User, error) {
	rows, _ := s.pool.Query(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id, name, email`,
		in.Name, in.Email,
	)
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[api.User])
	if err != nil {
		if isDuplicateKey(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*api.User, error) {
	rows, _ := s.pool.Query(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id)
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[api.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*api.User, error) {
	return s.queryUsers(ctx, `SELECT id, name, email FROM users ORDER BY id`)
}

// SearchUsers matches name and email with ILIKE. Wildcard characters in
// the filter are escaped so values match literally.
func (s *Store) SearchUsers(ctx context.Context, filter api.UserFilter) ([]*api.User, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Name != "" {
		args = append(args, containsPattern(filter.Name))
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Email != "" {
		args = append(args, containsPattern(filter.Email))
		conditions = append(conditions, fmt.Sprintf("email ILIKE $%d", len(args)))
	}

	query := `SELECT id, name, email FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	debug.Log("storage", "search users", "query", query, "args", len(args))
	return s.queryUsers(ctx, query, args...)
}

// UpdateUser replaces the name and email of an existing user.
func (s *Store) UpdateUser(ctx context.Context, id int64, in api.UserInput) (*api.User, error) {
	rows, _ := s.pool.Query(ctx, `
		UPDATE users SET name = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, name, email
	`, id, in.Name, in.Email)
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[api.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		if isDuplicateKey(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]*api.User, error) {
	rows, _ := s.pool.Query(ctx, query, args...)
	users, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[api.User])
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	if users == nil {
		users = []*api.User{}
	}
	return users, nil
}

// containsPattern builds an ILIKE pattern matching s anywhere, escaping
// the LIKE metacharacters.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
