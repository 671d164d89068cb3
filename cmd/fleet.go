package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyneline/dispatch/app"
	"github.com/tyneline/dispatch/config"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetDate string

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List vehicles and their job counts for a day",
	RunE:  runFleetLs,
}

func init() {
	fleetLsCmd.Flags().StringVar(&fleetDate, "date", "", "day to inspect (YYYY-MM-DD, default today)")
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	date := time.Now()
	if fleetDate != "" {
		date, err = time.Parse("2006-01-02", fleetDate)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", fleetDate)
		}
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	snap, err := svc.Registry.Snapshot(context.Background(), date)
	if err != nil {
		return err
	}
	for _, v := range snap.Vehicles {
		jobs := snap.JobsForVehicle(v.ID)
		name := v.Registration
		if name == "" {
			name = v.ID
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d jobs\n", v.ID, name, len(jobs))
	}
	return nil
}
