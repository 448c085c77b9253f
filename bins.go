package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecoroute/ecoroute-go/internal/api"
)

func newBinsCmd() *cobra.Command {
	var critical bool

	cmd := &cobra.Command{
		Use:   "bins",
		Short: "List and manage waste bins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			var bins []api.Bin
			if critical {
				bins, err = app.Client.ListCriticalBins(cmd.Context())
			} else {
				bins, err = app.Client.ListBins(cmd.Context())
			}

			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(bins)
			}

			rows := make([][]string, 0, len(bins))
			for _, b := range bins {
				rows = append(rows, []string{
					b.BinID,
					b.Status,
					fmt.Sprintf("%.0f%%", b.CurrentFill),
					fmt.Sprintf("%.0f", b.GasLevel),
					b.UpdatedAt.Format("Jan _2 15:04"),
				})
			}

			printTable(os.Stdout, []string{"BIN", "STATUS", "FILL", "GAS", "UPDATED"}, rows)

			return nil
		},
	}

	cmd.Flags().BoolVar(&critical, "critical", false, "only bins flagged CRITICAL")

	cmd.AddCommand(newBinsShowCmd())
	cmd.AddCommand(newBinsAddCmd())
	cmd.AddCommand(newBinsSetCmd())
	cmd.AddCommand(newBinsRmCmd())
	cmd.AddCommand(newBinsClassifyCmd())
	cmd.AddCommand(newBinsPredictCmd())

	return cmd
}

func newBinsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one bin",
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

			bin, err := app.Client.GetBin(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(bin)
			}

			fmt.Printf("%s  %s\n", bin.BinID, bin.Status)
			fmt.Printf("fill:     %.0f%%\n", bin.CurrentFill)
			fmt.Printf("gas:      %.0f\n", bin.GasLevel)
			fmt.Printf("location: %.5f, %.5f\n", bin.Location.Lat, bin.Location.Lng)

			if bin.LastWasteType != "" {
				fmt.Printf("waste:    %s (%.0f%%)\n", bin.LastWasteType, bin.WasteConfident*100)
			}

			fmt.Printf("updated:  %s\n", bin.UpdatedAt.Format("Jan _2 15:04"))

			return nil
		},
	}
}

func newBinsAddCmd() *cobra.Command {
	var (
		binID    string
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new bin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := requireAuth(app.Session); err != nil {
				return err
			}

			bin := api.Bin{
				BinID:    binID,
				Location: api.Location{Lat: lat, Lng: lng},
			}

			if err := app.Client.CreateBin(cmd.Context(), bin); err != nil {
				return err
			}

			statusf("Bin %s registered\n", binID)

			return nil
		},
	}

	cmd.Flags().StringVar(&binID, "bin-id", "", "bin identifier (e.g. BIN-001)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	_ = cmd.MarkFlagRequired("bin-id")

	return cmd
}

func newBinsSetCmd() *cobra.Command {
	var (
		status string
		active bool
	)

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update a bin's status or active flag",
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

			updates := make(map[string]any)

			if cmd.Flags().Changed("status") {
				updates["status"] = status
			}

			if cmd.Flags().Changed("active") {
				updates["isActive"] = active
			}

			if len(updates) == 0 {
				return fmt.Errorf("nothing to update: pass --status or --active")
			}

			if err := app.Client.UpdateBin(cmd.Context(), args[0], updates); err != nil {
				return err
			}

			statusf("Bin %s updated\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "bin status (NORMAL or CRITICAL)")
	cmd.Flags().BoolVar(&active, "active", true, "whether the bin is in service")

	return cmd
}

func newBinsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a bin",
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

			if err := app.Client.DeleteBin(cmd.Context(), args[0]); err != nil {
				return err
			}

			statusf("Bin %s removed\n", args[0])

			return nil
		},
	}
}

func newBinsClassifyCmd() *cobra.Command {
	var (
		wasteType  string
		confidence float64
	)

	cmd := &cobra.Command{
		Use:   "classify <id>",
		Short: "Record a waste classification for a bin",
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

			if err := app.Client.ClassifyWaste(cmd.Context(), args[0], wasteType, confidence); err != nil {
				return err
			}

			statusf("Classified %s as %s\n", args[0], wasteType)

			return nil
		},
	}

	cmd.Flags().StringVar(&wasteType, "type", "", "waste type (dry or wet)")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "classification confidence (0-1)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newBinsPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <id>",
		Short: "Show the fill forecast for a bin",
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

			prediction, err := app.Client.GetPrediction(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if prediction == nil {
				statusf("No forecast for %s yet\n", args[0])
				return nil
			}

			if flagJSON {
				return printJSON(prediction)
			}

			fmt.Printf("%s: %.0f%% predicted, full at %s\n",
				prediction.BinID, prediction.PredictedFill,
				prediction.FullAt.Format("Jan _2 15:04"))

			return nil
		},
	}
}
