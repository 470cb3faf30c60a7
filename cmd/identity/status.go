// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/techiekraft/identity/internal/config"
	"github.com/techiekraft/identity/internal/store"
)

// ServiceStatus holds the status information reported by the status command.
type ServiceStatus struct {
	Live             bool   `json:"live"`
	Ready            bool   `json:"ready"`
	MigrationVersion uint   `json:"migration_version"`
	MigrationDirty   bool   `json:"migration_dirty"`
	HealthError      string `json:"health_error,omitempty"`
	DatabaseError    string `json:"database_error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running identity service",
		Long: `Query the health probes of a running identity service and report the
database migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")

	return cmd
}

func runStatus(cmd *cobra.Command, statusCfg *statusConfig) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	status := ServiceStatus{}
	queryHealth(cfg.Metrics.Addr, &status)
	queryMigrationVersion(cfg.Database.URL, &status)

	if statusCfg.jsonOutput {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

// queryHealth probes the liveness and readiness endpoints of the
// observability server.
func queryHealth(addr string, status *ServiceStatus) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://" + addr + "/healthz/liveness")
	if err != nil {
		status.HealthError = err.Error()
		return
	}
	_ = resp.Body.Close()
	status.Live = resp.StatusCode == http.StatusOK

	resp, err = client.Get("http://" + addr + "/healthz/readiness")
	if err != nil {
		status.HealthError = err.Error()
		return
	}
	_ = resp.Body.Close()
	status.Ready = resp.StatusCode == http.StatusOK
}

// queryMigrationVersion reads the schema version directly from the database.
func queryMigrationVersion(databaseURL string, status *ServiceStatus) {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.DatabaseError = err.Error()
		return
	}
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	if err != nil {
		status.DatabaseError = err.Error()
		return
	}
	status.MigrationVersion = version
	status.MigrationDirty = dirty
}

func formatStatusTable(status ServiceStatus) string {
	var b strings.Builder

	yesNo := func(v bool) string {
		if v {
			return "yes"
		}
		return "no"
	}

	fmt.Fprintf(&b, "Live:              %s\n", yesNo(status.Live))
	fmt.Fprintf(&b, "Ready:             %s\n", yesNo(status.Ready))
	fmt.Fprintf(&b, "Migration version: %d", status.MigrationVersion)
	if status.MigrationDirty {
		b.WriteString(" (dirty)")
	}
	if status.HealthError != "" {
		fmt.Fprintf(&b, "\nHealth error:      %s", status.HealthError)
	}
	if status.DatabaseError != "" {
		fmt.Fprintf(&b, "\nDatabase error:    %s", status.DatabaseError)
	}
	return b.String()
}
