package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyneline/dispatch/app"
	"github.com/tyneline/dispatch/config"
)

var autoAssignDate string

var autoAssignCmd = &cobra.Command{
	Use:   "auto-assign",
	Short: "Run a whole-day auto-assign and print the report",
	RunE:  runAutoAssign,
}

func init() {
	autoAssignCmd.Flags().StringVar(&autoAssignDate, "date", "", "day to schedule (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(autoAssignCmd)
}

func runAutoAssign(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	date := time.Now()
	if autoAssignDate != "" {
		date, err = time.Parse("2006-01-02", autoAssignDate)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", autoAssignDate)
		}
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.Manager.AutoAssign(ctx, date)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
