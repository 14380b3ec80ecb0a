// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/yoshisuproject/simpleauth/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository using
// PostgreSQL. Replace and Consume run inside transactions: the
// at-most-one-live-token and single-use invariants are enforced here, at
// the storage layer, where concurrent requests actually meet.
type ResetTokenRepository struct {
	db DB
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(db DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// Replace deletes all existing tokens for the owning user and inserts the
// new one in a single transaction. A selector collision surfaces as
// auth.ErrDuplicate, which callers treat as retryable.
func (r *ResetTokenRepository) Replace(ctx context.Context, token *auth.ResetToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE user_id = $1
	`, token.UserID.String()); err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "delete prior tokens").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, selector, verifier_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.Selector,
		token.VerifierHash,
		token.ExpiresAt,
		token.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return oops.Code("RESET_DUPLICATE_SELECTOR").Wrap(auth.ErrDuplicate)
		}
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "insert token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// GetBySelector retrieves a token by its selector.
func (r *ResetTokenRepository) GetBySelector(ctx context.Context, selector string) (*auth.ResetToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, selector, verifier_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE selector = $1
	`, selector)

	token, err := scanResetToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_SELECTOR_FAILED").
			With("operation", "get token by selector").
			Wrap(err)
	}
	return token, nil
}

// Consume deletes the token and updates the owning user's password hash in
// one transaction. Whichever concurrent attempt deletes the row wins; every
// other attempt sees zero rows and gets auth.ErrNotFound with neither write
// applied.
func (r *ResetTokenRepository) Consume(ctx context.Context, selector string, userID ulid.ULID, passwordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	deleted, err := tx.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE selector = $1
	`, selector)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "delete token").
			Wrap(err)
	}
	if deleted.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	updated, err := tx.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, userID.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "update password_hash").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if updated.RowsAffected() == 0 {
		// User row disappeared; roll the token deletion back too.
		return oops.Code("USER_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// DeleteByUser removes all tokens for a user.
func (r *ResetTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_BY_USER_FAILED").
			With("operation", "delete tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	// No ErrNotFound if no rows deleted - that's a valid state.
	return nil
}

// DeleteExpired removes all expired tokens and returns the count.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanResetToken scans a single row into a ResetToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanResetToken(row pgx.Row) (*auth.ResetToken, error) {
	var (
		idStr        string
		userIDStr    string
		selector     string
		verifierHash string
		expiresAt    time.Time
		createdAt    time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &selector, &verifierHash, &expiresAt, &createdAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan reset token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse token id").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.ResetToken{
		ID:           id,
		UserID:       userID,
		Selector:     selector,
		VerifierHash: verifierHash,
		ExpiresAt:    expiresAt,
		CreatedAt:    createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
