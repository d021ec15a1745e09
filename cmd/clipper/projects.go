package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/clipper/clipper-server/internal/catalog"
	"github.com/clipper/clipper-server/internal/project"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects stored on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, database, err := setup()
		if err != nil {
			return err
		}
		defer database.Close()

		store := project.NewStore(catalog.NewStorage(catalog.NewRepository(database.Conn())), nil, logger)
		if err := store.Load(context.Background()); err != nil {
			return err
		}

		projects := store.List()
		if len(projects) == 0 {
			fmt.Println("No projects yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLIPS\tOWNER\tCREATED")
		for _, p := range projects {
			owner := p.UserID
			if owner == "" {
				owner = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, len(p.Clips), owner, humanize.Time(p.CreatedAt))
		}
		return w.Flush()
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users who have signed in on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, database, err := setup()
		if err != nil {
			return err
		}
		defer database.Close()

		svc := catalog.NewService(catalog.NewRepository(database.Conn()), nil, logger)
		users, err := svc.ListUsers(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tEMAIL\tNAME\tLAST SYNC")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, humanize.Time(u.LastSync))
		}
		return w.Flush()
	},
}
