package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/devcompass/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing repository analysis, browsing and chat tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDeps(context.Background())
		if err != nil {
			return err
		}
		defer d.close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "devcompass MCP server started on stdio (backend=%s)\n", d.cfg.APIURL)

		srv := mcpserver.NewServer(d.client, d.gate, d.poller)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
