package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDriversCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List and manage fleet drivers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			drivers, err := app.Client.ListDrivers(cmd.Context())
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(drivers)
			}

			rows := make([][]string, 0, len(drivers))
			for _, d := range drivers {
				active := "no"
				if d.IsActive {
					active = "yes"
				}

				rows = append(rows, []string{
					d.DriverID,
					d.Name,
					d.Status,
					active,
					d.TruckID,
				})
			}

			printTable(os.Stdout, []string{"DRIVER", "NAME", "STATUS", "ACTIVE", "TRUCK"}, rows)

			return nil
		},
	}

	cmd.AddCommand(newDriversShowCmd())
	cmd.AddCommand(newDriversActivateCmd(true))
	cmd.AddCommand(newDriversActivateCmd(false))

	return cmd
}

func newDriversShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <driver-id>",
		Short: "Show one driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			driver, err := app.Client.GetDriver(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(driver)
			}

			fmt.Printf("%s  %s <%s>\n", driver.DriverID, driver.Name, driver.Email)
			fmt.Printf("status: %s\n", driver.Status)

			if driver.TruckID != "" {
				fmt.Printf("truck:  %s\n", driver.TruckID)
			}

			if driver.CurrentLocation != nil {
				fmt.Printf("at:     %.5f, %.5f\n",
					driver.CurrentLocation.Lat, driver.CurrentLocation.Lng)
			}

			return nil
		},
	}
}

func newDriversActivateCmd(active bool) *cobra.Command {
	use, short := "activate <id>", "Put a driver in service"
	if !active {
		use, short = "deactivate <id>", "Take a driver out of service"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			if err := app.Client.SetDriverActive(cmd.Context(), args[0], active); err != nil {
				return err
			}

			statusf("Driver %s updated\n", args[0])

			return nil
		},
	}
}
