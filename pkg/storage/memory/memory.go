// Package memory provides an in-memory implementation of transport.UserStore
// for testing and lightweight deployments. Users are lost when the process
// restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mmorady/authgate/pkg/api"
	"github.com/mmorady/authgate/pkg/storage"
	"github.com/mmorady/authgate/pkg/transport"
)

// Store is an in-memory UserStore. Emails are unique, compared exactly
// as stored.
type Store struct {
	mu      sync.RWMutex
	users   map[int64]api.User
	byEmail map[string]int64
	nextID  int64
}

// Ensure Store implements transport.UserStore at compile time.
var _ transport.UserStore = (*Store)(nil)

// New creates an empty in-memory store. IDs start at 1.
func New() *Store {
	return &Store{
		users:   make(map[int64]api.User),
		byEmail: make(map[string]int64),
		nextID:  1,
	}
}

// CreateUser stores a new user.
func (s *Store) CreateUser(_ context.Context, in api.UserInput) (*api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[in.Email]; taken {
		return nil, storage.ErrConflict
	}

	u := api.User{ID: s.nextID, Name: in.Name, Email: in.Email}
	s.nextID++
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID

	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id int64) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(_ context.Context) ([]*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(api.User) bool { return true }), nil
}

// SearchUsers returns users whose name and email contain the filter
// values, ignoring case.
func (s *Store) SearchUsers(_ context.Context, filter api.UserFilter) ([]*api.User, error) {
	name := strings.ToLower(filter.Name)
	email := strings.ToLower(filter.Email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(u api.User) bool {
		if name != "" && !strings.Contains(strings.ToLower(u.Name), name) {
			return false
		}
		if email != "" && !strings.Contains(strings.ToLower(u.Email), email) {
			return false
		}
		return true
	}), nil
}

// UpdateUser replaces the name and email of an existing user.
func (s *Store) UpdateUser(_ context.Context, id int64, in api.UserInput) (*api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if owner, taken := s.byEmail[in.Email]; taken && owner != id {
		return nil, storage.ErrConflict
	}

	delete(s.byEmail, u.Email)
	u.Name = in.Name
	u.Email = in.Email
	s.users[id] = u
	s.byEmail[u.Email] = id

	return &u, nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byEmail, u.Email)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// collect returns copies of the users matching keep, ordered by ID.
// Must be called with the lock held.
func (s *Store) collect(keep func(api.User) bool) []*api.User {
	result := make([]*api.User, 0, len(s.users))
	for _, u := range s.users {
		if keep(u) {
			result = append(result, &u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}
