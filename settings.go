package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecoroute/ecoroute-go/internal/api"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show fleet-wide system settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			settings, err := app.Client.GetSettings(cmd.Context())
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(settings)
			}

			fmt.Printf("pre-alert threshold:   %.0f%%\n", settings.PreAlertThreshold)
			fmt.Printf("critical threshold:    %.0f%%\n", settings.CriticalThreshold)
			fmt.Printf("auto route generation: %t\n", settings.AutoRouteGeneration)
			fmt.Printf("max bins per route:    %d\n", settings.MaxBinsPerRoute)
			fmt.Printf("refresh interval:      %d min\n", settings.RefreshIntervalMinutes)

			return nil
		},
	}

	cmd.AddCommand(newSettingsSetCmd())

	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var settings api.Settings

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update fleet-wide system settings",
		Long: `Replace the backend's system settings document. Unset flags keep their
current backend value: the current document is fetched first and only the
flags passed on the command line are changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			current, err := app.Client.GetSettings(cmd.Context())
			if err != nil {
				return err
			}

			merged := *current

			if cmd.Flags().Changed("pre-alert") {
				merged.PreAlertThreshold = settings.PreAlertThreshold
			}

			if cmd.Flags().Changed("critical") {
				merged.CriticalThreshold = settings.CriticalThreshold
			}

			if cmd.Flags().Changed("auto-routes") {
				merged.AutoRouteGeneration = settings.AutoRouteGeneration
			}

			if cmd.Flags().Changed("max-bins") {
				merged.MaxBinsPerRoute = settings.MaxBinsPerRoute
			}

			if cmd.Flags().Changed("refresh-minutes") {
				merged.RefreshIntervalMinutes = settings.RefreshIntervalMinutes
			}

			if err := app.Client.UpdateSettings(cmd.Context(), merged); err != nil {
				return err
			}

			statusf("Settings updated\n")

			return nil
		},
	}

	cmd.Flags().Float64Var(&settings.PreAlertThreshold, "pre-alert", 0, "pre-alert fill threshold (%)")
	cmd.Flags().Float64Var(&settings.CriticalThreshold, "critical", 0, "critical fill threshold (%)")
	cmd.Flags().BoolVar(&settings.AutoRouteGeneration, "auto-routes", false, "generate routes automatically")
	cmd.Flags().IntVar(&settings.MaxBinsPerRoute, "max-bins", 0, "maximum bins per route")
	cmd.Flags().IntVar(&settings.RefreshIntervalMinutes, "refresh-minutes", 0, "dashboard refresh interval (minutes)")

	return cmd
}
