package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/BradenHooton/molar/pkg/roster"
	"github.com/spf13/cobra"
)

type rosterOptions struct {
	server string
	token  string
	search string
	status string
	sortBy string
	desc   bool
	page   int
}

func rosterCmd() *cobra.Command {
	opts := rosterOptions{}

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print one page of the client roster",
		Long: `Lists clients from a running server using a session token.

Examples:
  # First page, sorted by name
  molarctl roster --token "$MOLAR_TOKEN"

  # Completed clients by most recent visit
  molarctl roster --status completed --sort lastVisit --desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := roster.NewClient(opts.server, roster.WithToken(opts.token))
			return runRoster(cmd.Context(), cmd.OutOrStdout(), roster.NewView(client), opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("MOLAR_TOKEN"), "Session token (defaults to $MOLAR_TOKEN)")
	cmd.Flags().StringVar(&opts.search, "search", "", "Search name, phone or email")
	cmd.Flags().StringVar(&opts.status, "status", string(roster.StatusAll), "all, inTreatment or completed")
	cmd.Flags().StringVar(&opts.sortBy, "sort", string(roster.SortByName), "name, phone, lastVisit, nextAppointment or dateOfBirth")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number")
	return cmd
}

func runRoster(ctx context.Context, out io.Writer, view *roster.View, opts rosterOptions) error {
	snap, _ := view.Update(ctx, func(q *roster.QueryState) {
		// Sort first: changing the sort field clears the search
		q.SetSortField(roster.SortField(opts.sortBy))
		if opts.desc {
			q.ToggleSortDirection()
		}
		q.SetSearch(opts.search)
		q.SetStatus(roster.StatusFilter(opts.status))
		q.SetPage(opts.page)
	})
	if snap.Err != nil {
		return snap.Err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPHONE\tSTATUS\tTREATMENTS\tLAST VISIT\tNEXT APPOINTMENT")
	for _, r := range snap.Rows {
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%d\t%s\t%s\n",
			r.FirstName, r.LastName, r.Phone, r.Status, r.TreatmentCount,
			formatDay(r.LastVisit), formatDay(r.NextAppointment))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := snap.Pagination
	fmt.Fprintf(out, "page %d of %d, %d matching, %d clients overall\n",
		p.Current, p.Pages, p.Total, snap.TotalClientsOverall)
	return nil
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
