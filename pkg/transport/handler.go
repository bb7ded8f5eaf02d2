package transport

import (
	"context"

	"github.com/mmorady/authgate/pkg/api"
)

// UserStore handles persistence of users.
type UserStore interface {
	// CreateUser stores a new user and returns it with its assigned ID.
	// Returns storage.ErrConflict if the email is already taken.
	CreateUser(ctx context.Context, in api.UserInput) (*api.User, error)

	// GetUser retrieves a user by ID. Returns storage.ErrNotFound if the
	// user does not exist.
	GetUser(ctx context.Context, id int64) (*api.User, error)

	// ListUsers returns all users ordered by ID.
	ListUsers(ctx context.Context) ([]*api.User, error)

	// SearchUsers returns users matching every non-empty field of the
	// filter as a case-insensitive substring, ordered by ID. An empty
	// result is not an error.
	SearchUsers(ctx context.Context, filter api.UserFilter) ([]*api.User, error)

	// UpdateUser replaces the name and email of an existing user.
	// Returns storage.ErrNotFound or storage.ErrConflict.
	UpdateUser(ctx context.Context, id int64, in api.UserInput) (*api.User, error)

	// DeleteUser removes a user. Returns storage.ErrNotFound if the user
	// does not exist.
	DeleteUser(ctx context.Context, id int64) error

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}
