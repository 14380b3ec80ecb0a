// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoshisuproject/simpleauth/internal/auth"
	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

func TestNewResetToken(t *testing.T) {
	userID := ulid.Make()
	expiry := time.Now().Add(15 * time.Minute)

	token, err := auth.NewResetToken(userID, "selector", "verifier-hash", expiry)
	require.NoError(t, err)

	assert.Equal(t, userID, token.UserID)
	assert.Equal(t, "selector", token.Selector)
	assert.Equal(t, "verifier-hash", token.VerifierHash)
	assert.Equal(t, expiry, token.ExpiresAt)
	assert.False(t, token.IsExpired())
}

func TestNewResetToken_Invalid(t *testing.T) {
	userID := ulid.Make()
	expiry := time.Now().Add(time.Minute)

	tests := []struct {
		name     string
		userID   ulid.ULID
		selector string
		hash     string
		expiry   time.Time
		wantCode string
	}{
		{"zero user", ulid.ULID{}, "s", "h", expiry, "RESET_INVALID_USER"},
		{"empty selector", userID, "", "h", expiry, "RESET_INVALID_SELECTOR"},
		{"empty hash", userID, "s", "", expiry, "RESET_INVALID_HASH"},
		{"zero expiry", userID, "s", "h", time.Time{}, "RESET_INVALID_EXPIRY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewResetToken(tt.userID, tt.selector, tt.hash, tt.expiry)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestResetToken_IsExpired(t *testing.T) {
	token := &auth.ResetToken{ExpiresAt: time.Now().Add(-time.Second)}
	assert.True(t, token.IsExpired())

	token.ExpiresAt = time.Now().Add(time.Minute)
	assert.False(t, token.IsExpired())
}

func TestGenerateResetCredential(t *testing.T) {
	selector, verifier, err := auth.GenerateResetCredential()
	require.NoError(t, err)

	assert.Len(t, selector, auth.ResetSelectorBytes*2)
	assert.Len(t, verifier, auth.ResetVerifierBytes*2)
	assert.NotEqual(t, selector, verifier)

	selector2, verifier2, err := auth.GenerateResetCredential()
	require.NoError(t, err)
	assert.NotEqual(t, selector, selector2)
	assert.NotEqual(t, verifier, verifier2)
}

func TestCombineAndSplitCredential(t *testing.T) {
	combined := auth.CombineCredential("sel", "ver")
	assert.Equal(t, "sel:ver", combined)

	selector, verifier, ok := auth.SplitCredential(combined)
	require.True(t, ok)
	assert.Equal(t, "sel", selector)
	assert.Equal(t, "ver", verifier)
}

func TestSplitCredential_FirstSeparatorOnly(t *testing.T) {
	selector, verifier, ok := auth.SplitCredential("sel:ver:extra")
	require.True(t, ok)
	assert.Equal(t, "sel", selector)
	assert.Equal(t, "ver:extra", verifier, "everything after the first separator is the verifier")
}

func TestSplitCredential_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		combined string
	}{
		{"empty", ""},
		{"no separator", "selverifier"},
		{"missing verifier", "sel:"},
		{"missing selector", ":ver"},
		{"separator only", ":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := auth.SplitCredential(tt.combined)
			assert.False(t, ok)
		})
	}
}
