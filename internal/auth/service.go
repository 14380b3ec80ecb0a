// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// tokenInsertRetries bounds the regenerate-and-retry loop on a session token
// collision. With 256-bit tokens a single collision is already implausible.
const tokenInsertRetries = 3

// dummyPasswordHash is used when a user doesn't exist to prevent timing
// attacks. We still run password verification to make response time
// consistent. This is NOT a real credential - it's a fake hash that will
// never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides credential verification and session lifecycle operations.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a new Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.New(slog.DiscardHandler),
	}, nil
}

// NewServiceWithLogger creates a new Service with the provided logger.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewService(users, sessions, hasher)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// AuthenticateUser verifies an email/password pair. The two failure paths
// (unknown email, wrong password) share one error code and both run a full
// password verification, so they are indistinguishable in shape and timing.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, against the dummy hash when the user is unknown.
	valid := s.hasher.Verify(password, targetHash)

	if !userExists || !valid {
		s.logger.Debug("authentication failed", "email", email)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	return user, nil
}

// StartSession creates and persists a session for the user. A token
// collision on insert is retried with a fresh token; the storage layer's
// unique constraint is what makes the retry safe under concurrency.
func (s *Service) StartSession(ctx context.Context, user *User, ipAddress, userAgent string) (*Session, error) {
	if user == nil {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user is required")
	}

	var session *Session
	backoff := retry.WithMaxRetries(tokenInsertRetries, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := NewSession(user.ID, ipAddress, userAgent)
		if err != nil {
			return err
		}
		if err := s.sessions.Create(ctx, candidate); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return retry.RetryableError(err)
			}
			return err
		}
		session = candidate
		return nil
	})
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.Info("session started", "user_id", user.ID.String(), "session_id", session.ID.String())
	return session, nil
}

// ResumeSession looks up the session behind a bearer token and its owning
// user. An empty or unknown token is not an error, merely unauthenticated:
// both return (nil, nil, nil).
func (s *Service) ResumeSession(ctx context.Context, token string) (*Session, *User, error) {
	if token == "" {
		return nil, nil, nil
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, oops.Code("SESSION_RESUME_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Dangling session whose user is gone: treat as unauthenticated.
			return nil, nil, nil
		}
		return nil, nil, oops.Code("SESSION_RESUME_FAILED").
			With("operation", "get session user").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}

	return session, user, nil
}

// TerminateSession deletes the session. A nil session or one already deleted
// is a no-op, so calling it twice is safe.
func (s *Service) TerminateSession(ctx context.Context, session *Session) error {
	if session == nil {
		return nil
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_TERMINATE_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}

	s.logger.Info("session terminated", "session_id", session.ID.String())
	return nil
}
