package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"messenger/auth"
	"messenger/contract"
	"messenger/domain"
	customerrors "messenger/errors"
)

type IAuthService interface {
	Authenticate(ctx context.Context, token string) (domain.UserID, error)
	SeedDemoUsers(ctx context.Context, names []string) ([]SeededUser, error)
}

// SeededUser is a demo account with a ready to use token.
type SeededUser struct {
	User  domain.User
	Token string
}

// AuthService resolves bearer tokens to known users. Accounts and credentials
// are managed elsewhere; tokens are trusted once signed with the shared secret.
type AuthService struct {
	log    *slog.Logger
	users  contract.IUserRepository
	issuer *auth.TokenIssuer
}

func NewAuthService(log *slog.Logger, users contract.IUserRepository, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{log: log, users: users, issuer: issuer}
}

// Authenticate validates the token and checks that its subject still exists.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.UserID, error) {
	if token == "" {
		return "", customerrors.ErrInvalidToken
	}
	claims, err := s.issuer.ValidateToken(token)
	if err != nil {
		return "", err
	}
	exists, err := s.users.Exists(ctx, claims.User())
	if err != nil {
		return "", fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", customerrors.ErrUserNotFound, claims.UserID)
	}
	return claims.User(), nil
}

// SeedDemoUsers creates the given users when the directory is empty, then
// issues a token for every user in the directory.
func (s *AuthService) SeedDemoUsers(ctx context.Context, names []string) ([]SeededUser, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		for _, name := range names {
			user, err := s.users.CreateUser(ctx, name)
			if errors.Is(err, customerrors.ErrUserAlreadyExists) {
				continue
			}
			if err != nil {
				return nil, err
			}
			s.log.Info("Demo user created", "user_id", user.ID, "username", user.Name)
			users = append(users, user)
		}
	}

	seeded := make([]SeededUser, 0, len(users))
	for _, user := range users {
		token, err := s.issuer.GenerateToken(user.ID, user.Name)
		if err != nil {
			return nil, err
		}
		seeded = append(seeded, SeededUser{User: user, Token: token})
	}
	return seeded, nil
}
