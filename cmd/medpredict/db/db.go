package db

import (
	"context"
	"fmt"

	"github.com/cozy-creator/medpredict/internal/config"
	database "github.com/cozy-creator/medpredict/internal/db"
	"github.com/cozy-creator/medpredict/internal/db/migrations"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
)

var Cmd = &cobra.Command{
	Use:   "db",
	Short: "Utility for database management",
}

func init() {
	Cmd.AddCommand(newMigrationCmd())
}

// withMigrator connects to the configured database for the duration of fn.
func withMigrator(ctx context.Context, fn func(*migrate.Migrator) error) error {
	driver, err := database.NewConnection(ctx, config.MustGetConfig().DB)
	if err != nil {
		return err
	}
	defer driver.Close()

	return fn(migrations.NewMigrator(driver.GetDB()))
}

func newMigrationCmd() *cobra.Command {
	migrationCmd := &cobra.Command{
		Use:   "migration",
		Short: "Utility for handling database migrations",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "create migration tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(migrator *migrate.Migrator) error {
				return migrator.Init(cmd.Context())
			})
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(migrator *migrate.Migrator) error {
				if err := migrator.Init(cmd.Context()); err != nil {
					return err
				}
				if err := migrator.Lock(cmd.Context()); err != nil {
					return err
				}
				defer migrator.Unlock(cmd.Context()) //nolint:errcheck

				group, err := migrator.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "there are no new migrations to run (database is up to date)")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated to %s\n", group)
				return nil
			})
		},
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "rollback the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(migrator *migrate.Migrator) error {
				if err := migrator.Lock(cmd.Context()); err != nil {
					return err
				}
				defer migrator.Unlock(cmd.Context()) //nolint:errcheck

				group, err := migrator.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "there are no groups to roll back")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", group)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status of the migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(migrator *migrate.Migrator) error {
				status, err := migrator.MigrationsWithStatus(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrations: %s\n", status)
				fmt.Fprintf(cmd.OutOrStdout(), "unapplied migrations: %s\n", status.Unapplied())
				fmt.Fprintf(cmd.OutOrStdout(), "last migration group: %s\n", status.LastGroup())
				return nil
			})
		},
	}

	migrationCmd.AddCommand(initCmd, migrateCmd, rollbackCmd, statusCmd)
	return migrationCmd
}
