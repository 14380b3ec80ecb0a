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

// Reset flow configuration.
const (
	// DefaultResetTokenTTL matches the configuration default of 900 seconds.
	DefaultResetTokenTTL = 15 * time.Minute

	// MinPasswordLength is the minimum length of a new password.
	MinPasswordLength = 8
)

// selectorInsertRetries bounds the regenerate-and-retry loop on a selector
// collision.
const selectorInsertRetries = 3

// PasswordResetService handles the selector/verifier reset-token flow.
type PasswordResetService struct {
	users  UserRepository
	tokens ResetTokenRepository
	hasher PasswordHasher
	ttl    time.Duration
	logger *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService with a no-op
// logger. A non-positive ttl falls back to DefaultResetTokenTTL.
// Returns an error if any required dependency is nil.
func NewPasswordResetService(users UserRepository, tokens ResetTokenRepository, hasher PasswordHasher, ttl time.Duration) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("tokens repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		ttl:    ttl,
		logger: slog.New(slog.DiscardHandler),
	}, nil
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService with
// the provided logger.
func NewPasswordResetServiceWithLogger(users UserRepository, tokens ResetTokenRepository, hasher PasswordHasher, ttl time.Duration, logger *slog.Logger) (*PasswordResetService, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewPasswordResetService(users, tokens, hasher, ttl)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// RequestReset issues a reset credential for the user behind an email.
// Replacing rather than inserting keeps the at-most-one-live-token
// invariant: any prior token for the user stops verifying the moment the
// new one lands.
//
// If the email is unknown it returns ("", nil, nil) - no token, no error.
// The caller must still report uniform success to the requester, so that
// the response never reveals which emails are registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, *User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, nil
		}
		return "", nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	var combined string
	backoff := retry.WithMaxRetries(selectorInsertRetries, retry.NewConstant(time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		selector, verifier, err := GenerateResetCredential()
		if err != nil {
			return err
		}

		verifierHash, err := s.hasher.Hash(verifier)
		if err != nil {
			return oops.Code("RESET_REQUEST_FAILED").
				With("operation", "hash verifier").
				Wrap(err)
		}

		token, err := NewResetToken(user.ID, selector, verifierHash, time.Now().Add(s.ttl))
		if err != nil {
			return err
		}

		if err := s.tokens.Replace(ctx, token); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return retry.RetryableError(err)
			}
			return err
		}
		combined = CombineCredential(selector, verifier)
		return nil
	})
	if err != nil {
		return "", nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.Info("password reset requested", "user_id", user.ID.String())
	return combined, user, nil
}

// VerifyToken validates a combined selector/verifier credential and returns
// the matching token. Malformed input, an unknown selector, an expired
// token, and a verifier mismatch all collapse into one RESET_TOKEN_INVALID
// failure so the caller cannot be used as an oracle for which case occurred.
func (s *PasswordResetService) VerifyToken(ctx context.Context, combined string) (*ResetToken, error) {
	selector, verifier, ok := SplitCredential(combined)
	if !ok {
		return nil, errResetTokenInvalid()
	}

	token, err := s.tokens.GetBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errResetTokenInvalid()
		}
		return nil, oops.Code("RESET_VERIFY_FAILED").
			With("operation", "get token by selector").
			Wrap(err)
	}

	if token.IsExpired() {
		return nil, errResetTokenInvalid()
	}

	if !s.hasher.Verify(verifier, token.VerifierHash) {
		return nil, errResetTokenInvalid()
	}

	return token, nil
}

// CompleteReset verifies the credential and sets the new password.
// Validation failures (length, confirmation) carry their specific reason;
// everything token-related stays collapsed. The token deletion and password
// update are a single atomic consume, so a credential completes at most
// once even under concurrent attempts.
func (s *PasswordResetService) CompleteReset(ctx context.Context, combined, newPassword, confirmation string) error {
	if newPassword != confirmation {
		return oops.Code("RESET_PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	if len(newPassword) < MinPasswordLength {
		return oops.Code("RESET_PASSWORD_TOO_SHORT").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}

	token, err := s.VerifyToken(ctx, combined)
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_COMPLETE_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.tokens.Consume(ctx, token.Selector, token.UserID, passwordHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost the race to a concurrent completion, or the user row is
			// gone. Either way the credential no longer completes.
			return errResetTokenInvalid()
		}
		return oops.Code("RESET_COMPLETE_FAILED").
			With("operation", "consume token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}

	s.logger.Info("password reset completed", "user_id", token.UserID.String())
	return nil
}

// errResetTokenInvalid is the single normalized failure for every
// token-related rejection. One message for malformed, not-found, expired,
// and mismatch closes the enumeration side-channel between those cases.
func errResetTokenInvalid() error {
	return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired password reset link")
}
