// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yoshisuproject/simpleauth/internal/store"
)

// MigrationStatus holds the schema state reported by the status command.
type MigrationStatus struct {
	Version uint   `json:"version"`
	Name    string `json:"name,omitempty"`
	Dirty   bool   `json:"dirty"`
	Pending []uint `json:"pending,omitempty"`
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database schema status",
		Long:  `Show the applied migration version and any pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	registerConfigFlags(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
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
	defer migrator.Close() //nolint:errcheck // close error is secondary to the status result

	status, err := collectStatus(migrator)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal status").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

func collectStatus(migrator *store.Migrator) (MigrationStatus, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		return MigrationStatus{}, err
	}

	name := ""
	if version > 0 {
		name, err = store.MigrationName(version)
		if err != nil {
			return MigrationStatus{}, err
		}
	}

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return MigrationStatus{}, err
	}

	return MigrationStatus{
		Version: version,
		Name:    name,
		Dirty:   dirty,
		Pending: pending,
	}, nil
}

func formatStatusTable(status MigrationStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tDIRTY\tPENDING")
	name := status.Name
	if name == "" {
		name = "-"
	}
	pending := "none"
	if len(status.Pending) > 0 {
		pending = fmt.Sprint(status.Pending)
	}
	_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", status.Version, name, status.Dirty, pending)

	_ = w.Flush()
	return buf.String()
}
