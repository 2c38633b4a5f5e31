package cli

import (
	"fmt"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/db/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back Postgres schema migrations",
	}

	run := func(direction string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.Config.DBDriver != db.DriverPostgres {
				// SQLite initializes its schema on open.
				store, err := a.OpenStore()
				if err != nil {
					return err
				}
				defer store.Close()
				fmt.Fprintf(out, "SQLite schema is up to date at %s\n", a.Config.DBPath)
				return nil
			}

			if err := migrate.Run(a.Config.DatabaseURL, direction); err != nil {
				return err
			}
			fmt.Fprintf(out, "Migrations applied (%s)\n", direction)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run(migrate.Up)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: run(migrate.Down)},
	)
	return cmd
}
