// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset credential configuration. The selector is a plaintext lookup key
// with no secrecy requirement; the verifier is the secret half and only its
// hash is ever persisted.
const (
	ResetSelectorBytes = 16 // 16 bytes = 32 hex chars
	ResetVerifierBytes = 32 // 32 bytes = 64 hex chars

	// ResetSeparator joins selector and verifier in the externally
	// transmitted credential.
	ResetSeparator = ":"
)

// ResetToken represents one outstanding password-reset request. At most one
// live token exists per user; issuing a new one replaces all prior tokens.
type ResetToken struct {
	ID           ulid.ULID
	UserID       ulid.ULID
	Selector     string
	VerifierHash string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// NewResetToken creates a validated ResetToken instance.
func NewResetToken(userID ulid.ULID, selector, verifierHash string, expiresAt time.Time) (*ResetToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if selector == "" {
		return nil, oops.Code("RESET_INVALID_SELECTOR").Errorf("selector cannot be empty")
	}
	if verifierHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("verifier hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &ResetToken{
		ID:           ulid.Make(),
		UserID:       userID,
		Selector:     selector,
		VerifierHash: verifierHash,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now(),
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *ResetToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// GenerateResetCredential creates the two independently random halves of a
// reset credential. The verifier is returned in plaintext exactly once, for
// out-of-band delivery; callers persist only its hash.
func GenerateResetCredential() (selector, verifier string, err error) {
	selectorBytes := make([]byte, ResetSelectorBytes)
	if _, err = rand.Read(selectorBytes); err != nil {
		return "", "", oops.Code("RESET_CREDENTIAL_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	verifierBytes := make([]byte, ResetVerifierBytes)
	if _, err = rand.Read(verifierBytes); err != nil {
		return "", "", oops.Code("RESET_CREDENTIAL_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(selectorBytes), hex.EncodeToString(verifierBytes), nil
}

// CombineCredential joins a selector and verifier into the transmitted form.
func CombineCredential(selector, verifier string) string {
	return selector + ResetSeparator + verifier
}

// SplitCredential splits a combined credential on the first separator only,
// so a verifier containing extra separators still parses as one value.
// ok is false if either half is missing.
func SplitCredential(combined string) (selector, verifier string, ok bool) {
	selector, verifier, found := strings.Cut(combined, ResetSeparator)
	if !found || selector == "" || verifier == "" {
		return "", "", false
	}
	return selector, verifier, true
}

// ResetTokenRepository manages reset-token persistence. Implementations must
// enforce selector uniqueness with a storage-level constraint.
type ResetTokenRepository interface {
	// Replace atomically deletes all existing tokens for the owning user and
	// stores the new one, so at most one live token exists per user. Returns
	// ErrDuplicate (wrapped) on a selector collision.
	Replace(ctx context.Context, token *ResetToken) error

	// GetBySelector retrieves a token by its selector.
	GetBySelector(ctx context.Context, selector string) (*ResetToken, error)

	// Consume atomically deletes the token identified by selector and sets
	// the owning user's password hash. Returns ErrNotFound (wrapped) if the
	// token was already consumed or the user row is gone; in that case
	// neither write happens.
	Consume(ctx context.Context, selector string, userID ulid.ULID, passwordHash string) error

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired tokens and returns the count of
	// deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
