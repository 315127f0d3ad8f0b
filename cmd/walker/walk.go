package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/notify"
	"github.com/waypointwalk/waypointwalk/internal/proximity"
	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/session"
	"github.com/waypointwalk/waypointwalk/internal/tour"
	"github.com/waypointwalk/waypointwalk/internal/tourclient"
)

type walkOptions struct {
	track     string
	offline   bool
	simulate  bool
	strict    bool
	threshold float64
}

func walkCmd(g *globals) *cobra.Command {
	var opts walkOptions

	cmd := &cobra.Command{
		Use:   "walk <routeId>",
		Short: "Walk a route and report waypoint arrivals",
		Long: `Load a route and report each waypoint once when you come within the
arrival radius. Positions come from a YAML track (--track) or arrivals are
triggered by pressing Enter (--simulate).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWalk(ctx, g, opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.track, "track", "", "YAML track file to replay")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Treat the catalog as unreachable and use the cache")
	cmd.Flags().BoolVar(&opts.simulate, "simulate", false, "Arrive at the next waypoint on each line read from stdin")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail instead of using the cache when a fetch fails while online")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", arrival.DefaultThresholdMeters, "Arrival radius in meters")
	return cmd
}

func runWalk(ctx context.Context, g *globals, opts walkOptions, routeID string, in io.Reader, out io.Writer) error {
	if opts.track == "" && !opts.simulate {
		return errors.New("either --track or --simulate is required")
	}

	logger := g.logger()

	store, err := routecache.NewFileStore(g.cacheDir)
	if err != nil {
		return err
	}

	registry := resilience.NewRegistry()
	client := g.client(registry)
	probe := tourclient.NewProbe(tourclient.ProbeConfig{
		Client:   client,
		Registry: registry,
		Offline:  opts.offline,
		Logger:   logger,
	})

	var (
		source proximity.LocationSource
		replay *proximity.ReplaySource
	)
	if opts.track != "" {
		track, err := proximity.LoadTrackFile(opts.track)
		if err != nil {
			return err
		}
		replay = proximity.NewReplaySource(track)
		source = replay
	} else {
		source = proximity.NewFeedSource()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newPrinter(out, routeID)

	sess := session.New(session.Config{
		RouteID: routeID,
		Policy: routecache.NewPolicy(routecache.PolicyConfig{
			Store:              store,
			Logger:             logger,
			StrictReachability: opts.strict,
		}),
		Fetcher:          client,
		Reachability:     probe,
		LocationSource:   source,
		Permissions:      proximity.AlwaysGranted,
		SubscribeOptions: proximity.DefaultSubscribeOptions(),
		Observer:         p,
		Threshold:        opts.threshold,
		Logger:           logger,
	})
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		return err
	}

	if opts.simulate {
		if err := simulate(ctx, sess, in, out, p.done); err != nil {
			return err
		}
	} else {
		select {
		case <-replay.Done():
		case <-p.done:
		case <-ctx.Done():
		}
	}

	p.summary(sess)
	return nil
}

// simulate arrives at the next waypoint for every line read from in.
func simulate(ctx context.Context, sess *session.Session, in io.Reader, out io.Writer, done <-chan struct{}) error {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		fmt.Fprintln(out, "Press Enter to arrive at the next waypoint.")
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case _, ok := <-lines:
			if !ok {
				return nil
			}
		}

		if _, ok, err := sess.SimulateArrival(); err != nil {
			return err
		} else if !ok {
			return nil
		}
	}
}

// printer reports session events as plain text. done is closed once every
// waypoint has been reached.
type printer struct {
	out     io.Writer
	routeID string
	done    chan struct{}

	mu        sync.Mutex
	waypoints int
	arrived   int
	finish    sync.Once
}

var _ session.Observer = (*printer)(nil)

func newPrinter(out io.Writer, routeID string) *printer {
	return &printer{out: out, routeID: routeID, done: make(chan struct{})}
}

func (p *printer) RouteLoaded(res *routecache.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.waypoints = len(res.Route.Waypoints)
	p.arrived = 0

	switch res.Source {
	case routecache.SourceCache:
		fmt.Fprintf(p.out, "%s (%d waypoints), offline copy saved %s\n",
			res.Route.Name, p.waypoints, res.SavedAt.Local().Format(time.DateTime))
		if res.FetchErr != nil {
			fmt.Fprintf(p.out, "  network fetch failed: %v\n", res.FetchErr)
		}
	default:
		fmt.Fprintf(p.out, "%s (%d waypoints)\n", res.Route.Name, p.waypoints)
	}
	printPlace(p.out, "Start", res.Route.Start)
	printPlace(p.out, "End", res.Route.End)

	if p.waypoints == 0 {
		p.finish.Do(func() { close(p.done) })
	}
}

func (p *printer) RouteLoadFailed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if errors.Is(err, routecache.ErrUnavailable) {
		fmt.Fprintln(p.out, "Route unavailable: the catalog cannot be reached and no offline copy exists.")
		return
	}
	fmt.Fprintf(p.out, "Route could not be loaded: %v\n", err)
}

func (p *printer) ArrivalOccurred(ev arrival.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := notify.ArrivalNotification(p.routeID, "", ev)
	fmt.Fprintf(p.out, "[%s] %s\n", ev.ArrivedAt.Local().Format(time.TimeOnly), n.Title)
	if n.Body != "" {
		fmt.Fprintf(p.out, "  %s\n", n.Body)
	}

	p.arrived++
	if p.arrived >= p.waypoints {
		p.finish.Do(func() { close(p.done) })
	}
}

func (p *printer) PermissionDenied() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "Location permission denied; arrivals will not be detected.")
}

func (p *printer) summary(sess *session.Session) {
	route := sess.Route()
	if route == nil {
		return
	}
	progress := sess.Progress()

	p.mu.Lock()
	defer p.mu.Unlock()

	arrived := 0
	for _, st := range progress {
		if st.Arrived {
			arrived++
		}
	}
	fmt.Fprintf(p.out, "Visited %d of %d waypoints\n", arrived, len(route.Waypoints))
	for i, wp := range route.Waypoints {
		mark := " "
		if i < len(progress) && progress[i].Arrived {
			mark = "x"
		}
		fmt.Fprintf(p.out, "  [%s] %d. %s\n", mark, i+1, wp.Name)
	}
}

func printPlace(out io.Writer, label string, place tour.Place) {
	fmt.Fprintf(out, "  %s: %s\n    %s\n", label, place.Address, tour.DirectionsURL(place.Location))
}
