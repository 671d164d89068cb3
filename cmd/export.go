package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyneline/dispatch/app"
	"github.com/tyneline/dispatch/config"
	"github.com/tyneline/dispatch/pkg/export"
)

var (
	exportDate   string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a day's schedule as CSV or JSON",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "day to export (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or json")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	date := time.Now()
	if exportDate != "" {
		date, err = time.Parse("2006-01-02", exportDate)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", exportDate)
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
	entries := export.FromJobs(snap.Jobs)

	out := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	switch exportFormat {
	case "json":
		return export.WriteJSON(out, entries)
	case "csv":
		return export.WriteCSV(out, entries)
	default:
		return fmt.Errorf("unknown format %q, expected csv or json", exportFormat)
	}
}
