// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

func TestStatusCommand_Properties(t *testing.T) {
	cmd := NewStatusCmd()

	assert.Equal(t, "status", cmd.Use)
	assert.Contains(t, cmd.Short, "status")
	assert.Contains(t, cmd.Long, "migration")
}

func TestStatusCommand_Help(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"status", "--help"})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "--json", "Help missing --json flag")
}

func TestStatusCommand_RequiresDatabaseURL(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"status"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Contains(t, err.Error(), "database.url")
}

func TestFormatStatusTable(t *testing.T) {
	tests := []struct {
		name   string
		status MigrationStatus
		want   []string
	}{
		{
			name:   "fresh database",
			status: MigrationStatus{Version: 0, Pending: []uint{1, 2, 3}},
			want:   []string{"VERSION", "-", "[1 2 3]"},
		},
		{
			name:   "fully migrated",
			status: MigrationStatus{Version: 3, Name: "create_password_reset_tokens"},
			want:   []string{"3", "create_password_reset_tokens", "none"},
		},
		{
			name:   "dirty schema",
			status: MigrationStatus{Version: 2, Name: "create_sessions", Dirty: true},
			want:   []string{"true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := formatStatusTable(tt.status)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}
