package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/repositories"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/internal/kernel"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/internal/server"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/auth"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/mail"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start()
	},
}

// route:list builds the route table on throwaway infrastructure; nothing
// is connected.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := auth.NewIssuer(auth.Options{Secret: "route-list", Issuer: "foodtruck", Audience: "foodtruck", TTL: time.Hour})
		if err != nil {
			return err
		}
		app, err := kernel.New(kernel.Deps{
			Store:  repositories.NewMemoryStore(),
			Tokens: tokens,
			Mailer: mail.New("", "", nil),
		})
		if err != nil {
			return err
		}

		infos := app.Router.Routes()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
