package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/burnout-twin/burnout-twin/internal/mcp"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the twin's state as MCP tools over stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	logger.Info("starting MCP server over stdio")
	return mcpserver.NewServer(store, cfg.SnapshotPath, cfg.PersonaID).Run(cmd.Context())
}
