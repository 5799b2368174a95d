// Package auth provides credential primitives: password hashing and
// verification, and minting/validation of signed bearer tokens.
package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT access token identifying the
	// account by email. Returns the token string or an error if token
	// generation fails.
	GenerateToken(ctx context.Context, email string) (string, error)

	// ValidateToken validates the provided token string and extracts the
	// claims. Returns the claims if the token is valid, or an error if
	// validation fails (expired, invalid signature, missing subject, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified payload of an access token.
type Claims struct {
	// Email identifies the account the token was issued for.
	Email string

	// Standard registered JWT claims
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
