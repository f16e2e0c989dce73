package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/database/seeders"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/database"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/migration"
)

// bootDB loads config and opens the database connection.
func bootDB() error {
	if err := config.Load(); err != nil {
		return err
	}
	if config.DatabaseDriver() == "memory" {
		return fmt.Errorf("DB_DRIVER=memory has no schema to manage")
	}
	return database.Connect()
}

func printNames(verb string, names []string) {
	if len(names) == 0 {
		fmt.Printf("Nothing to %s.\n", verb)
		return
	}
	for _, n := range names {
		fmt.Printf("  • %s\n", n)
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		applied, err := migration.New(database.DB).Run(cmd.Context())
		printNames("migrate", applied)
		return err
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Roll back the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		undone, err := migration.New(database.DB).Rollback(cmd.Context())
		printNames("roll back", undone)
		return err
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		rows, err := migration.New(database.DB).Status(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tRAN\tBATCH")
		for _, r := range rows {
			batch := "-"
			if r.Ran {
				batch = fmt.Sprint(r.Batch)
			}
			fmt.Fprintf(w, "%s\t%t\t%s\n", r.Name, r.Ran, batch)
		}
		return w.Flush()
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()
		ran, err := seeders.RunAll(cmd.Context(), repositories.NewGormStore(database.DB))
		printNames("seed", ran)
		return err
	},
}
