// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoshisuproject/simpleauth/internal/auth"
	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	user, err := auth.NewUser("User@Example.COM", "hash")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", user.Email, "email is normalized to lower case")
	assert.Equal(t, "hash", user.PasswordHash)
	assert.NotEqual(t, ulid.ULID{}, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestNewUser_TrimsWhitespace(t *testing.T) {
	user, err := auth.NewUser("  user@example.com  ", "hash")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
}

func TestNewUser_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		hash     string
		wantCode string
	}{
		{"empty email", "", "hash", "AUTH_INVALID_EMAIL"},
		{"whitespace email", "   ", "hash", "AUTH_INVALID_EMAIL"},
		{"no at sign", "userexample.com", "hash", "AUTH_INVALID_EMAIL"},
		{"empty hash", "user@example.com", "", "AUTH_INVALID_HASH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewUser(tt.email, tt.hash)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}
