// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Cleanup timing defaults.
const (
	// DefaultCleanupInterval is the cadence of the expired-token sweep.
	DefaultCleanupInterval = time.Hour

	// cleanupTickTimeout bounds one sweep so a hung storage call never
	// wedges the loop; the next tick simply retries.
	cleanupTickTimeout = time.Minute
)

// CleanupObserver is notified after each successful sweep with the number of
// tokens deleted. Used to feed metrics.
type CleanupObserver func(deleted int64)

// TokenCleanup periodically deletes expired reset tokens. Failures are
// transient: they are logged and retried on the next tick, never fatal to
// the host process.
type TokenCleanup struct {
	tokens   ResetTokenRepository
	interval time.Duration
	logger   *slog.Logger
	observer CleanupObserver
}

// NewTokenCleanup creates a cleanup task. A non-positive interval falls back
// to DefaultCleanupInterval; observer may be nil.
func NewTokenCleanup(tokens ResetTokenRepository, interval time.Duration, logger *slog.Logger, observer CleanupObserver) (*TokenCleanup, error) {
	if tokens == nil {
		return nil, oops.Errorf("tokens repository is required")
	}
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TokenCleanup{
		tokens:   tokens,
		interval: interval,
		logger:   logger,
		observer: observer,
	}, nil
}

// Run sweeps on a fixed interval until ctx is cancelled. It blocks; callers
// run it in its own goroutine.
func (c *TokenCleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("reset token cleanup stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep performs one bulk delete of expired tokens.
func (c *TokenCleanup) sweep(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, cleanupTickTimeout)
	defer cancel()

	deleted, err := c.tokens.DeleteExpired(tickCtx)
	if err != nil {
		c.logger.Error("reset token cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.logger.Info("cleaned up expired reset tokens", "deleted", deleted)
	} else {
		c.logger.Debug("no expired reset tokens to clean up")
	}

	if c.observer != nil {
		c.observer(deleted)
	}
}
