package cmd

import (
	"github.com/huangsam/pts/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the PTS MCP server",
	Long:  `Launch an MCP server that allows AI agents to predict, evaluate and validate test selections via standard tools.`,
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol, logs stay on stderr
		return sharedSetup(rootCtx, cmd, args, setupOptions{})
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}
