package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecoroute/ecoroute-go/internal/config"
	"github.com/ecoroute/ecoroute-go/internal/entity"
	"github.com/ecoroute/ecoroute-go/internal/push"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live bin and route updates",
		Long: `Connect to the backend's push stream and print entity updates as they
arrive. Local caches are seeded by snapshot pulls and repaired by a fresh
pull after every reconnect. Runs until interrupted.`,
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

			holder := config.NewHolder(app.Config, resolvedCfgPath)

			go func() {
				if err := config.Watch(ctx, holder, app.Logger); err != nil {
					app.Logger.Warn("config watcher unavailable", "error", err.Error())
				}
			}()

			// The channel reads the stream URL through the holder before
			// every dial, so a hot-reloaded URL takes effect on the next
			// reconnect.
			channel := push.NewChannel(func() string {
				return holder.Config().Stream.URL
			}, app.Logger)
			syncer := entity.NewSynchronizer(app.Client, channel, app.Logger)

			sub := syncer.Subscribe(func(u entity.Update) {
				printUpdate(u)
			})
			defer sub.Unsubscribe()

			statusf("Watching %s (Ctrl-C to stop)\n", app.Config.Stream.URL)

			return syncer.Run(ctx)
		},
	}
}

// printUpdate renders one change notification.
func printUpdate(u entity.Update) {
	switch u.Kind {
	case entity.KindBin:
		fmt.Printf("bin   %-12s %-8s fill=%.0f%% gas=%.0f\n",
			u.Bin.BinID, u.Bin.Status, u.Bin.CurrentFill, u.Bin.GasLevel)
	case entity.KindRoute:
		fmt.Printf("route %-12s driver=%s stops=%d\n",
			u.Route.ID, u.Route.DriverID, len(u.Route.Stops))
	}
}
