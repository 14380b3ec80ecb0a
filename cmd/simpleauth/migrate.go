// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yoshisuproject/simpleauth/internal/config"
	"github.com/yoshisuproject/simpleauth/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down bool
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply pending schema migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down, steps)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations (destructive)")
	cmd.Flags().IntVar(&steps, "steps", 0, "apply exactly n migrations (negative rolls back)")
	registerConfigFlags(cmd)

	return cmd
}

func runMigrate(cmd *cobra.Command, down bool, steps int) error {
	if down && steps != 0 {
		return oops.Code("CONFIG_INVALID").Errorf("--down and --steps are mutually exclusive")
	}

	cfg, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to the migration result

	switch {
	case down:
		cmd.Println("Rolling back all migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed")
	case steps != 0:
		cmd.Printf("Applying %d migration step(s)...\n", steps)
		if err := migrator.Steps(steps); err != nil {
			return err
		}
		cmd.Println("Steps completed")
	default:
		cmd.Println("Running migrations...")
		if err := migrator.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
	}

	return nil
}

// loadCommandConfig loads configuration for a subcommand, honoring the
// persistent --config flag and any flag overrides.
func loadCommandConfig(cmd *cobra.Command) (config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile, _ = cmd.Root().PersistentFlags().GetString("config")
	}
	return config.Load(configFile, cmd.Flags())
}
