package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/database/seeders"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/database"
)

// admin:token is the only way an admin gets a bearer token; the email code
// flow refuses allowlisted addresses.
var adminTokenCmd = &cobra.Command{
	Use:   "admin:token <email>",
	Short: "Create the admin account if needed and print a bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(args[0]))
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()

		if !slices.Contains(config.AdminEmails(), email) {
			return fmt.Errorf("%s is not in ADMIN_EMAILS", email)
		}
		admins, err := seeders.EnsureAdmins(cmd.Context(), repositories.NewGormStore(database.DB), []string{email})
		if err != nil {
			return err
		}

		issuer, err := auth.FromConfig()
		if err != nil {
			return err
		}
		token, err := issuer.Issue(admins[0].ID, admins[0].Email)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
