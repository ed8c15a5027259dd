package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

// Register creates an account.
func (s *Service) Register(ctx context.Context, req auth.RegisterRequest) (model.User, error) {
	if err := auth.Validate(req); err != nil {
		return model.User{}, err
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", auth.ErrValidation, err)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.store.CreateUser(ctx, model.User{
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Phone:        req.Phone,
		Sport:        req.Sport,
		Team:         req.Team,
		PasswordHash: hash,
	})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info(ctx, "user registered", logger.String("user_id", u.ID), logger.String("role", string(u.Role)))
	return u, nil
}

// Login checks credentials and issues an access token. Unknown emails,
// wrong passwords and inactive accounts are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req auth.LoginRequest) (types.Session, error) {
	if err := auth.Validate(req); err != nil {
		return types.Session{}, err
	}
	u, err := s.store.UserByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return types.Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return types.Session{}, err
	}
	ok, err := auth.ComparePassword(req.Password, u.PasswordHash)
	if err != nil {
		return types.Session{}, err
	}
	if !ok || !u.Active {
		return types.Session{}, auth.ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(u)
	if err != nil {
		return types.Session{}, err
	}
	return types.Session{
		AccessToken: token,
		TokenType:   types.TokenType,
		ExpiresIn:   int(s.issuer.TTL().Seconds()),
		User:        u,
	}, nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, caller model.Actor) (model.User, error) {
	return s.store.UserByID(ctx, caller.ID)
}

// displayName resolves an athlete's name for alerts, falling back to the id.
func (s *Service) displayName(ctx context.Context, id, given string) string {
	if name := strings.TrimSpace(given); name != "" {
		return name
	}
	if u, err := s.store.UserByID(ctx, id); err == nil && u.FullName != "" {
		return u.FullName
	}
	return id
}
