// Package api defines the wire types served by authgate: the user
// resource, its input and search filter, and the structured error
// envelope shared by every endpoint.
//
// Core types:
//   - [User]: a stored user as returned to clients
//   - [UserInput]: the create/replace request body, validated with [UserInput.Validate]
//   - [UserFilter]: case-insensitive substring search parameters
//   - [APIError]: structured error with type, code, param, and message
//
// The package performs no I/O.
package api
