package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// CreateUser creates a user account. The password is hashed here; the
// Datastore only ever sees the hash.
func (s *Server) CreateUser(ctx context.Context, username, password, email string) (string, error) {
	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.store.CreateUser(ctx, username, passwordHash, email)
	if err != nil {
		return "", err
	}

	if s.Auditor != nil {
		s.Auditor.LogUserCreated(userID)
	}
	s.Logger.Info("Created user account", "user_id", userID)

	return userID, nil
}

// RegisterUser creates a user account and reports success as a boolean,
// treating a duplicate username as a plain failure.
func (s *Server) RegisterUser(ctx context.Context, username, password, email string) bool {
	_, err := s.CreateUser(ctx, username, password, email)
	if err != nil {
		if !errors.Is(err, storage.ErrDuplicateUser) {
			s.Logger.Warn("User registration failed", "error", err)
		}
		return false
	}
	return true
}

// AuthenticateUser verifies a username/password pair and returns the
// user ID. Failures are uniform: an unknown username and a wrong
// password both yield ErrInvalidCredentials.
func (s *Server) AuthenticateUser(ctx context.Context, username, password string) (string, error) {
	if s.AttemptLimiter != nil && !s.AttemptLimiter.Allow(username) {
		if s.Auditor != nil {
			s.Auditor.LogEvent(security.Event{
				Type:   security.EventRateLimited,
				UserID: username,
			})
		}
		return "", ErrRateLimited
	}

	userID, err := s.store.AuthenticateUser(ctx, username, password)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			if s.Auditor != nil {
				s.Auditor.LogAuthFailure(username, "", "invalid_credentials")
			}
			if s.Metrics != nil {
				s.Metrics.RecordAuthFailure(ctx, "invalid_credentials")
			}
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to authenticate user: %w", err)
	}

	return userID, nil
}
