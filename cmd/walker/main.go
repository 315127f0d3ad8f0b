// Package main provides the walker command line client.
//
// walker talks to a WaypointWalk catalog API, keeps a local file cache of
// the routes it loads, and runs walking sessions from a recorded track or
// by manual arrival.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/tourclient"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags shared by every subcommand.
type globals struct {
	baseURL  string
	cacheDir string
	logLevel string
	timeout  time.Duration

	stderr io.Writer
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "walker",
		Short: "Walk WaypointWalk routes from the command line",
		Long: `walker loads routes from a WaypointWalk catalog and reports arrivals
at their waypoints while you walk.

Routes are saved to a local cache directory every time they are fetched,
so a walk can start without network access once a route has been loaded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.stderr = cmd.ErrOrStderr()
		},
	}

	cmd.PersistentFlags().StringVar(&g.baseURL, "base-url", envOr("CATALOG_BASE_URL", tourclient.DefaultBaseURL), "Catalog API base URL")
	cmd.PersistentFlags().StringVar(&g.cacheDir, "cache-dir", defaultCacheDir(), "Directory for cached routes")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "Timeout for catalog requests")

	cmd.AddCommand(routesCmd(g))
	cmd.AddCommand(walkCmd(g))
	cmd.AddCommand(saveCmd(g))
	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "walker version %s (build: %s)\n", Version, BuildTime)
		},
	})

	return cmd
}

func (g *globals) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(g.logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	out := g.stderr
	if out == nil {
		out = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func (g *globals) client(registry *resilience.Registry) *tourclient.Client {
	return tourclient.NewClient(tourclient.ClientConfig{
		BaseURL:  g.baseURL,
		Registry: registry,
		Timeout:  g.timeout,
	})
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".waypointwalk"
	}
	return filepath.Join(dir, "waypointwalk", "routes")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
