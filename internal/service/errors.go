// Package service provides application-level services coordinating the
// stores, credential primitives, and transactions.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check for these with errors.Is(); the API layer maps them to
// transport status codes.
var (
	// ErrInvalidCredentials indicates a login attempt failed. It is returned
	// both when the email is unknown and when the password does not match,
	// so callers cannot enumerate registered accounts from the error.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
