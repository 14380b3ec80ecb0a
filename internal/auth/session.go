// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionTokenBytes is the entropy of a session token. 32 bytes is double
// the 128-bit minimum the cookie contract requires.
const SessionTokenBytes = 32 // 32 bytes = 64 hex chars

// Session represents one authenticated client connection. The token is the
// opaque bearer credential carried in the session cookie. IPAddress and
// UserAgent are observability metadata, not security-enforced.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	Token     string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// NewSession creates a validated Session with a fresh random token.
// IPAddress and UserAgent are optional and may be empty.
func NewSession(userID ulid.ULID, ipAddress, userAgent string) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		Token:     token,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}, nil
}

// GenerateSessionToken creates a cryptographically random session token.
func GenerateSessionToken() (string, error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

// SessionRepository manages session persistence. Implementations must
// enforce token uniqueness with a storage-level constraint; Create reports a
// collision as ErrDuplicate (wrapped) so callers can regenerate and retry.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByToken retrieves a session by its token.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// GetByUser retrieves all sessions for a user, newest first.
	GetByUser(ctx context.Context, userID ulid.ULID) ([]*Session, error)

	// Delete removes a session by ID. Returns ErrNotFound (wrapped) if the
	// session does not exist.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error
}
