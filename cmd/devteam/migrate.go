package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Strob0t/devteam/internal/adapter/postgres"
)

func migrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := g.postgresDSN()
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(cmd.Context(), dsn); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := g.postgresDSN()
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigrations(cmd.Context(), dsn, steps); err != nil {
				return err
			}
			slog.Info("migrations rolled back", "steps", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := g.postgresDSN()
			if err != nil {
				return err
			}
			v, err := postgres.MigrationVersion(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	})
	return cmd
}

// postgresDSN loads the configuration and returns the database DSN. The
// schema commands ignore storage.driver so the schema can be prepared
// before switching a deployment to postgres.
func (g *globals) postgresDSN() (string, error) {
	cfg, _, err := g.setup(true)
	if err != nil {
		return "", err
	}
	if cfg.Postgres.DSN == "" {
		return "", errors.New("postgres.dsn is not configured")
	}
	return cfg.Postgres.DSN, nil
}
