package auth

import (
	"context"
	"errors"

	"github.com/farmlink/farmhub/internal/domain/user"
	"github.com/farmlink/farmhub/internal/security"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("wrong password")
)

// UserStore is the slice of the users repository the strategies need.
// Kept small so tests can fake it easily.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

// CredentialStrategy verifies email+password at login. Built once at
// startup and handed to the routes, there is no runtime registry.
type CredentialStrategy struct {
	users UserStore
}

func NewCredentialStrategy(users UserStore) *CredentialStrategy {
	return &CredentialStrategy{users: users}
}

func (s *CredentialStrategy) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		return user.User{}, ErrUserNotFound
	}

	err = security.CheckPassword(u.PasswordHash, password)

	if err != nil {
		return user.User{}, ErrWrongPassword
	}

	return u, nil
}

// TokenStrategy verifies a bearer token and resolves the subject to a
// full user record. Every protected request re-authenticates through it.
type TokenStrategy struct {
	tokens *Manager
	users  UserStore
}

func NewTokenStrategy(tokens *Manager, users UserStore) *TokenStrategy {
	return &TokenStrategy{tokens: tokens, users: users}
}

func (s *TokenStrategy) Authenticate(ctx context.Context, raw string) (user.User, error) {
	subject, err := s.tokens.VerifyToken(raw)

	if err != nil {
		return user.User{}, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, subject)

	if err != nil {
		// token was valid but the subject no longer exists
		return user.User{}, ErrInvalidToken
	}

	return u, nil
}
