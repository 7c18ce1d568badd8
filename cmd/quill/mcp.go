package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/aretw0/quill/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Serves the quill tools (search, calculator, save_report) over MCP on stdio.
Unless --tools-only is set, a "research" tool runs the whole pipeline for a topic
and the graph is exposed as the quill://graph resource.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		toolsOnly, _ := cmd.Flags().GetBool("tools-only")

		srv, err := cli.NewMCPServer(cli.MCPOptions{
			ConfigPath: configPath,
			Debug:      debug,
			ToolsOnly:  toolsOnly,
			Err:        os.Stderr,
		})
		if err != nil {
			return err
		}

		// Ensure logs don't corrupt JSON-RPC on Stdout
		log.SetOutput(os.Stderr)
		slog.Info("Starting quill MCP Server (Stdio)...")
		return srv.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().Bool("tools-only", false, "Serve only the tools (no model credentials needed)")
}
