package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyneline/dispatch/config"
	"github.com/tyneline/dispatch/core/fare"
	"github.com/tyneline/dispatch/infra/logger"
)

var (
	farePickup  string
	fareDropoff string
	fareType    string
	fareReturn  bool
	fareMiles   float64
)

var fareCmd = &cobra.Command{
	Use:   "fare",
	Short: "Quote a journey against the configured pricing tables",
	RunE:  runFare,
}

func init() {
	fareCmd.Flags().StringVar(&farePickup, "pickup", "", "pickup address")
	fareCmd.Flags().StringVar(&fareDropoff, "dropoff", "", "dropoff address")
	fareCmd.Flags().StringVar(&fareType, "type", "", "vehicle type id")
	fareCmd.Flags().BoolVar(&fareReturn, "return", false, "return-inclusive journey")
	fareCmd.Flags().Float64Var(&fareMiles, "miles", 0, "known distance in miles")
	rootCmd.AddCommand(fareCmd)
}

func runFare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	calc, err := fare.New(cfg.Fare, nil, logger.New("fare"))
	if err != nil {
		return err
	}
	req := fare.Request{
		Pickup:        farePickup,
		Dropoff:       fareDropoff,
		VehicleTypeID: fareType,
		Return:        fareReturn,
	}
	if fareMiles > 0 {
		req.DistanceMiles = &fareMiles
	}
	q := calc.Compute(cmd.Context(), req)
	if !q.Known {
		fmt.Fprintln(cmd.OutOrStdout(), "no automatic price; manual quote required")
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(q)
}
