package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/internal/auth"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

// Authentication outcomes the handlers translate to HTTP statuses.
var (
	// ErrDuplicateEmail means an account with this email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrBadAdminSecret means admin registration was attempted without the
	// configured admin secret.
	ErrBadAdminSecret = errors.New("invalid admin secret")

	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot tell which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	DeleteByEmail(ctx context.Context, email string) error
}

// AdminPolicy holds the seeded administrator identity and the pre-shared
// secret gating admin self-registration.
type AdminPolicy struct {
	Email    string
	Password string
	Secret   string
}

// AuthService orchestrates registration, login, and admin bootstrap.
// It is stateless and safe for concurrent use.
type AuthService struct {
	repo   UserRepository
	tokens *auth.TokenService
	admin  AdminPolicy
	log    zerolog.Logger
}

func NewAuthService(repo UserRepository, tokens *auth.TokenService, admin AdminPolicy, log zerolog.Logger) *AuthService {
	admin.Email = NormalizeEmail(admin.Email)
	return &AuthService{repo: repo, tokens: tokens, admin: admin, log: log}
}

// NormalizeEmail fixes the email comparison policy: trimmed, lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns a signed access token.
//
// Role elevation is secret-gated: requesting "admin" requires the configured
// admin secret and fails otherwise; there is no silent downgrade. The
// existence pre-check gives a fast duplicate error, but the store's unique
// index is the authoritative guard, so a concurrent duplicate insert also
// comes back as ErrDuplicateEmail.
func (s *AuthService) Register(ctx context.Context, email, password, role, adminSecret string) (string, error) {
	email = NormalizeEmail(email)
	if role == "" {
		role = types.RoleUser
	}
	if !types.ValidRole(role) {
		return "", fmt.Errorf("unknown role %q", role)
	}

	if role == types.RoleAdmin {
		if s.admin.Secret == "" ||
			subtle.ConstantTimeCompare([]byte(adminSecret), []byte(s.admin.Secret)) != 1 {
			return "", ErrBadAdminSecret
		}
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return "", ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("check existing account: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Role:         role,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("create account: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("account registered")
	return s.tokens.Issue(user.ID, user.Email)
}

// Login verifies credentials and returns a signed access token. Unknown
// email and wrong password produce the identical error.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("look up account: %w", err)
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(user.ID, user.Email)
}

// GetByID resolves a token subject to a live account.
func (s *AuthService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// SeedAdmin creates the configured administrator account when absent.
// Safe to call on every start; a concurrent duplicate insert is a no-op.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	if s.admin.Email == "" || s.admin.Password == "" {
		return nil
	}

	if _, err := s.repo.GetByEmail(ctx, s.admin.Email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check admin account: %w", err)
	}

	hashed, err := auth.HashPassword(s.admin.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := s.repo.Create(ctx, types.User{
		Email:        s.admin.Email,
		Role:         types.RoleAdmin,
		PasswordHash: hashed,
	}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("create admin account: %w", err)
	}

	s.log.Info().Str("email", s.admin.Email).Msg("administrator account seeded")
	return nil
}

// ResetAdmin deletes any account under the configured admin email and
// recreates it from configuration.
func (s *AuthService) ResetAdmin(ctx context.Context) error {
	if s.admin.Email == "" || s.admin.Password == "" {
		return errors.New("admin email and password must be configured")
	}
	if err := s.repo.DeleteByEmail(ctx, s.admin.Email); err != nil {
		return fmt.Errorf("delete admin account: %w", err)
	}
	return s.SeedAdmin(ctx)
}
