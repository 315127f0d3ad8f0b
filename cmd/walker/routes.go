package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/waypointwalk/waypointwalk/internal/resilience"
)

func routesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			routes, err := g.client(resilience.NewRegistry()).List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tWAYPOINTS")
			for _, r := range routes {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", r.ID, r.Name, r.WaypointCount)
			}
			return tw.Flush()
		},
	}
}
