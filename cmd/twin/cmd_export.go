package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burnout-twin/burnout-twin/internal/replay"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

var (
	exportOut  string
	exportLast int
)

var exportCmd = &cobra.Command{
	Use:   "fixture-export",
	Short: "Write the last N update rows as a replay fixture",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output fixture JSON path (required)")
	exportCmd.Flags().IntVar(&exportLast, "last", 4, "number of most recent update rows to export")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	f, err := replay.ExportFixture(store, exportLast)
	if err != nil {
		return err
	}
	if err := replay.WriteFixture(exportOut, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d steps to %s\n", len(f.Steps), exportOut)
	return nil
}
