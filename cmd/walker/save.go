package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/worker"
)

func saveCmd(g *globals) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "save [routeId...]",
		Short: "Download routes into the cache for offline walks",
		Long:  "Download the given routes, or every catalog route when none are given, into the cache directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := routecache.NewFileStore(g.cacheDir)
			if err != nil {
				return err
			}

			client := g.client(resilience.NewRegistry())
			job := worker.NewWarmJob(worker.WarmJobConfig{
				Config:  worker.WarmConfig{Concurrency: concurrency, Timeout: g.timeout},
				Catalog: client,
				Fetcher: client,
				Store:   store,
				Logger:  g.logger(),
			})

			result, err := job.Run(cmd.Context(), args...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Saved %d of %d routes to %s\n", result.Successful, result.Total, g.cacheDir)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s: %s\n", e.RouteID, e.Error)
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d routes could not be saved", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Routes downloaded at once")
	return cmd
}
