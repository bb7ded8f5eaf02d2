// Package storage provides sentinel errors shared across storage adapter
// implementations.
//
// Storage adapters (memory, postgres) implement the transport.UserStore
// interface defined in pkg/transport/handler.go. This package contains
// only shared types, not the interface itself.
package storage
