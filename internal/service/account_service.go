package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/service/auth"
	"github.com/taskvault/taskvault-api/internal/store"
)

// AccountService provides user registration and credential authentication.
type AccountService interface {
	// Register creates a new user with the given email and password.
	// Returns store.ErrEmailExists if the email is already registered.
	Register(ctx context.Context, email, password string) (*domain.User, error)

	// Authenticate verifies an email/password pair and returns the matching
	// user. Returns ErrInvalidCredentials when the email is unknown or the
	// password does not match - the two cases are indistinguishable.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

// AccountServiceImpl implements the AccountService interface.
type AccountServiceImpl struct {
	userStore store.UserStore
	hasher    auth.PasswordHasher
	verifier  auth.PasswordVerifier
	db        *sql.DB
	logger    *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	userStore store.UserStore,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	db *sql.DB,
	logger *slog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		userStore: userStore,
		hasher:    hasher,
		verifier:  verifier,
		db:        db,
		logger:    logger.With("component", "account_service"),
	}
}

// Ensure AccountServiceImpl implements AccountService
var _ AccountService = (*AccountServiceImpl)(nil)

// Register creates a new user inside a transaction. The plaintext password
// is hashed before the store is touched and is never retained or logged.
func (s *AccountServiceImpl) Register(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(email, password)
	if err != nil {
		s.logger.Debug("rejected invalid registration", "error", err)
		return nil, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password during registration", "error", err)
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	user.HashedPassword = hashed
	user.Password = ""

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.userStore.WithTx(tx).Create(ctx, user)
	})

	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.logger.Debug("attempted to register an existing email")
			return nil, err
		}
		s.logger.Error("failed to save user", "error", err)
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info("user registered successfully", "user_id", user.ID)
	return user, nil
}

// Authenticate looks up the user by email and verifies the password.
func (s *AccountServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.logger.Debug("authentication failed: unknown email")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user during authentication", "error", err)
		return nil, fmt.Errorf("failed to authenticate user: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		s.logger.Debug("authentication failed: password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	s.logger.Debug("user authenticated successfully", "user_id", user.ID)
	return user, nil
}
