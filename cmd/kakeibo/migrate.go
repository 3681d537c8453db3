package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/config"
	"kakeibo/internal/storage"
	"kakeibo/internal/storage/postgres"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Bring the SQLite or Postgres schema up to date. Opening a store also
migrates it; this command is for running migrations ahead of a deploy.`,
		Annotations: map[string]string{skipBackend: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetBool("status")

			var (
				run     func() error
				version func() (uint, bool, error)
				target  string
			)
			switch a.cfg.DataBackend {
			case config.BackendSQLite:
				target = a.cfg.SQLiteDBPath
				run = func() error { return storage.RunMigrations(target) }
				version = func() (uint, bool, error) { return storage.MigrationVersion(target) }
			case config.BackendPostgres:
				target = "postgres"
				url := a.cfg.DatabaseURL
				run = func() error { return postgres.RunMigrations(url) }
				version = func() (uint, bool, error) { return postgres.MigrationVersion(url) }
			default:
				return errors.New("the memory backend has no schema to migrate")
			}

			if !status {
				a.logger.Info("Running database migrations", "backend", a.cfg.DataBackend)
				if err := run(); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			}
			v, dirty, err := version()
			if err != nil {
				return fmt.Errorf("read migration version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (dirty=%t)\n", target, v, dirty)
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "only show the current schema version")
	return cmd
}
