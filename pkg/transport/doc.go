// Package transport defines the store interface and middleware chain for
// the authgate HTTP transport layer.
//
// # Store Interface
//
// UserStore is the contract between the HTTP adapter and the storage
// backends in pkg/storage. Implementations return storage.ErrNotFound and
// storage.ErrConflict so the adapter can map them onto 404 and 409.
//
// # Middleware
//
// Middleware wraps an http.Handler with cross-cutting behavior. Built-in
// middleware provides panic recovery, request ID assignment (X-Request-ID),
// and structured request logging via log/slog. Authentication lives in
// pkg/auth and plugs into the same chain.
package transport
