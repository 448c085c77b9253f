package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecoroute/ecoroute-go/internal/api"
	"github.com/ecoroute/ecoroute-go/internal/entity"
	"github.com/ecoroute/ecoroute-go/internal/push"
	"github.com/ecoroute/ecoroute-go/internal/tracker"
)

func newRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Driver route commands",
	}

	cmd.AddCommand(newRouteShowCmd())
	cmd.AddCommand(newRouteOptimizeCmd())
	cmd.AddCommand(newRouteDriveCmd())

	return cmd
}

func newRouteOptimizeCmd() *cobra.Command {
	var (
		lat, lng float64
		driverID string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Request an optimized collection route",
		Long: `Ask the backend to compute an optimized route over the current critical
bins, starting from the given location. The computed route is assigned to
the driver and shown here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			if driverID == "" {
				sess := app.Session.Current()
				driverID = sess.DriverID
				if driverID == "" {
					driverID = sess.UserID
				}
			}

			route, err := app.Client.OptimizeRoute(cmd.Context(),
				api.Location{Lat: lat, Lng: lng}, driverID)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(route)
			}

			fmt.Printf("route %s: %d stops, %.1f km, %.0f min\n",
				route.ID, len(route.Stops), route.Distance/1000, route.Duration/60)

			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "start latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "start longitude")
	cmd.Flags().StringVar(&driverID, "driver", "", "driver to assign (defaults to the session's driver)")

	return cmd
}

func newRouteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active route assignment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			sess := app.Session.Current()

			driverID := sess.DriverID
			if driverID == "" {
				driverID = sess.UserID
			}

			route, err := app.Client.ActiveRoute(cmd.Context(), driverID)
			if err != nil {
				return err
			}

			if route == nil {
				statusf("No active route\n")
				return nil
			}

			if flagJSON {
				return printJSON(route)
			}

			fmt.Printf("route %s: %d stops, %.1f km, %.0f min\n",
				route.ID, len(route.Stops), route.Distance/1000, route.Duration/60)

			rows := make([][]string, 0, len(route.Stops))
			for i, stop := range route.Stops {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					stop.BinID,
					fmt.Sprintf("%.5f,%.5f", stop.Location.Lat, stop.Location.Lng),
				})
			}

			printTable(os.Stdout, []string{"#", "BIN", "LOCATION"}, rows)

			return nil
		},
	}
}

func newRouteDriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drive",
		Short: "Step through the active route stop by stop",
		Long: `Load the active route assignment and advance through its stops
interactively. Each stop shows the bin's live synchronized state; press
Enter to advance. The stop sequence is fixed — only the per-stop bin
data refreshes from the stream.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			sess := app.Session.Current()

			driverID := sess.DriverID
			if driverID == "" {
				driverID = sess.UserID
			}

			route, err := app.Client.ActiveRoute(ctx, driverID)
			if err != nil {
				return err
			}

			channel := push.NewChannel(func() string {
				return app.Config.Stream.URL
			}, app.Logger)
			syncer := entity.NewSynchronizer(app.Client, channel, app.Logger)

			go func() {
				if runErr := syncer.Run(ctx); runErr != nil {
					app.Logger.Warn("synchronizer stopped", "error", runErr.Error())
				}
			}()

			trk := tracker.New(syncer, app.Logger)
			trk.Load(route)

			return driveLoop(trk)
		},
	}
}

// driveLoop renders the current stop and advances on each input line.
func driveLoop(trk *tracker.Tracker) error {
	stop, err := trk.CurrentStop()
	if errors.Is(err, tracker.ErrNoActiveRoute) {
		statusf("No active route\n")
		return nil
	}

	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		printStop(stop)
		statusf("(Enter to advance, Ctrl-C to quit) ")

		if !scanner.Scan() {
			return scanner.Err()
		}

		next, complete, err := trk.Advance()
		if err != nil {
			return err
		}

		stop = next

		if complete {
			fmt.Println("Route complete.")
			return nil
		}
	}
}

// printStop renders one stop with its live bin state.
func printStop(s tracker.Stop) {
	fmt.Printf("\nStop %d of %d — bin %s (%.5f, %.5f)\n",
		s.Index+1, s.Total, s.BinID, s.Location.Lat, s.Location.Lng)

	if s.Bin != nil {
		fmt.Printf("  fill %.0f%%  gas %.0f  status %s\n",
			s.Bin.CurrentFill, s.Bin.GasLevel, s.Bin.Status)
	} else {
		fmt.Println("  (no live data yet)")
	}
}
