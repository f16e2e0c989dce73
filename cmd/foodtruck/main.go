// Command foodtruck runs the ordering backend and its maintenance tasks.
//
//	foodtruck serve
//	foodtruck migrate
//	foodtruck seed
//	foodtruck route:list
//	foodtruck admin:token owner@example.com
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/alumbrados-dev/Concessions-Connection-sub000/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "foodtruck",
	Short:         "Food truck ordering backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(adminTokenCmd)

	rootCmd.AddCommand(queueWorkCmd)
}
