// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the simpleauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simpleauth",
		Short: "simpleauth - session authentication service",
		Long: `simpleauth is a cookie-session authentication service with
email/password login and selector:verifier password reset links.`,
	}

	cmd.PersistentFlags().String("config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// registerConfigFlags declares the flag overrides that layer on top of the
// config file. Flag names mirror config keys so the two stay in sync.
func registerConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("server.addr", "", "HTTP listen address")
	cmd.Flags().String("server.base_url", "", "externally visible base URL")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", "", "log format (text or json)")
	cmd.Flags().String("observability.addr", "", "metrics listen address")
}
