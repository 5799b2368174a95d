// Package middleware provides HTTP middleware for the API layer.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/redact"
	"github.com/taskvault/taskvault-api/internal/service/auth"
	"github.com/taskvault/taskvault-api/internal/store"
)

// unauthorizedMessage is the single message returned for every
// authentication failure. A missing header, malformed token, bad signature,
// expired token, and a valid token whose account no longer exists are all
// indistinguishable to the caller.
const unauthorizedMessage = "Could not validate credentials"

// AuthMiddleware resolves bearer tokens to stored user identities.
type AuthMiddleware struct {
	jwtService auth.JWTService
	userStore  store.UserStore
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, userStore store.UserStore) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		userStore:  userStore,
	}
}

// Authenticate validates the JWT from the Authorization header, looks up the
// account it names, and adds the resolved user ID to the request context.
// Requests that cannot be resolved are rejected with a uniform 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, unauthorizedMessage)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, unauthorizedMessage)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) ||
				errors.Is(err, auth.ErrInvalidToken) ||
				errors.Is(err, auth.ErrTokenNotYetValid) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, unauthorizedMessage)
				return
			}
			slog.Error("failed to validate token", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			return
		}

		// The token is only half the story: the account it names must still
		// exist. A valid token for a deleted account fails identically to a
		// bad token.
		user, err := m.userStore.GetByEmail(r.Context(), claims.Email)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, unauthorizedMessage)
				return
			}
			slog.Error("failed to resolve token subject", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			return
		}

		ctx := shared.WithUserID(r.Context(), user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
