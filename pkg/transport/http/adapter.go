package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/mmorady/authgate/pkg/api"
	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/debug"
	"github.com/mmorady/authgate/pkg/observability"
	"github.com/mmorady/authgate/pkg/storage"
	"github.com/mmorady/authgate/pkg/transport"
)

// Adapter serves the users API over HTTP.
// It routes requests to the appropriate handler and serializes responses.
type Adapter struct {
	store      transport.UserStore
	mux        *http.ServeMux
	config     Config
	routeChain transport.Middleware
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MiB
	}
}

// NewAdapter creates an HTTP adapter backed by store.
// Middleware wraps every API route (not the health endpoints) in the given
// order, after the route label for metrics has been recorded.
func NewAdapter(store transport.UserStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		store:      store,
		mux:        http.NewServeMux(),
		config:     cfg,
		routeChain: transport.Chain(middlewares...),
	}

	a.route("POST /users", a.handleCreateUser)
	a.route("GET /users", a.handleListUsers)
	a.route("GET /users/search", a.handleSearchUsers)
	a.route("GET /users/{id}", a.handleGetUser)
	a.route("PUT /users/{id}", a.handleUpdateUser)
	a.route("DELETE /users/{id}", a.handleDeleteUser)
	a.route("GET /whoami", a.handleWhoAmI)

	a.Handle("GET /healthz", http.HandlerFunc(a.handleHealthz))
	a.Handle("GET /readyz", http.HandlerFunc(a.handleReadyz))

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// Handle registers h for pattern without the route middleware. It is used
// for operational endpoints such as /metrics.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, withRoute(pattern, h))
}

func (a *Adapter) route(pattern string, h http.HandlerFunc) {
	a.mux.Handle(pattern, withRoute(pattern, a.routeChain(h)))
}

// withRoute labels the request with its mux pattern before anything else
// runs, so rejected requests are attributed to the route they targeted.
func withRoute(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.SetRoute(r.Context(), pattern)
		next.ServeHTTP(w, r)
	})
}

// handleCreateUser handles POST /users.
func (a *Adapter) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := a.decodeUserInput(w, r)
	if !ok {
		return
	}

	user, err := a.store.CreateUser(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	debug.Log("transport", "user created", "id", user.ID)
	transport.WriteJSON(w, http.StatusCreated, user)
}

// handleGetUser handles GET /users/{id}.
func (a *Adapter) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := a.store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, user)
}

// handleListUsers handles GET /users.
func (a *Adapter) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if users == nil {
		users = []*api.User{}
	}

	transport.WriteJSON(w, http.StatusOK, users)
}

// handleSearchUsers handles GET /users/search?name=&email=.
func (a *Adapter) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := api.UserFilter{
		Name:  q.Get("name"),
		Email: q.Get("email"),
	}
	if filter.Empty() {
		transport.WriteAPIError(w,
			api.NewInvalidRequestError("", "At least one of name or email must be provided"))
		return
	}

	users, err := a.store.SearchUsers(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(users) == 0 {
		transport.WriteAPIError(w, api.NewNotFoundError("No users found matching the criteria"))
		return
	}

	transport.WriteJSON(w, http.StatusOK, users)
}

// handleUpdateUser handles PUT /users/{id}.
func (a *Adapter) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	in, ok := a.decodeUserInput(w, r)
	if !ok {
		return
	}

	user, err := a.store.UpdateUser(r.Context(), id, in)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	debug.Log("transport", "user updated", "id", user.ID)
	transport.WriteJSON(w, http.StatusOK, user)
}

// handleDeleteUser handles DELETE /users/{id}.
func (a *Adapter) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := a.store.DeleteUser(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	debug.Log("transport", "user deleted", "id", id)
	transport.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "User deleted successfully"})
}

// handleWhoAmI handles GET /whoami. Unauthenticated callers get a 200
// with an error field rather than a 401; when authentication is required
// the auth middleware rejects them before this handler runs.
func (a *Adapter) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		transport.WriteJSON(w, http.StatusOK, api.WhoAmIResponse{Error: "Unauthorized"})
		return
	}

	transport.WriteJSON(w, http.StatusOK, api.WhoAmIResponse{
		Message: "Access granted",
		User:    map[string]any(claims),
	})
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeUserInput reads and validates a UserInput body. On failure it
// writes the error response and returns false.
func (a *Adapter) decodeUserInput(w http.ResponseWriter, r *http.Request) (api.UserInput, bool) {
	var in api.UserInput

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return in, false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return in, false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return in, false
	}

	if apiErr := in.Validate(); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return in, false
	}

	return in, true
}

// parseUserID extracts the numeric {id} path value. On failure it writes a
// 400 and returns false.
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "user id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// writeStoreError maps a store error onto an API error response.
// Unexpected errors are logged and reported without their detail.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		transport.WriteAPIError(w, api.NewNotFoundError("User not found"))
	case errors.Is(err, storage.ErrConflict):
		transport.WriteAPIError(w, api.NewConflictError("email", "Email already registered"))
	default:
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			transport.WriteAPIError(w, apiErr)
			return
		}
		slog.Error("user store operation failed", "error", err)
		transport.WriteAPIError(w, api.NewServerError("internal server error"))
	}
}
