package main

import (
	"context"
	"log/slog"

	"github.com/aretw0/quill/internal/cli"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research pipeline over HTTP",
	Long: `Starts an HTTP server. POST /runs {"topic": "..."} streams a run as Server-Sent
Events; GET /graph, GET /runs/{id} and GET /metrics expose the graph, recorded
transcripts and Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		addr, _ := cmd.Flags().GetString("addr")
		transcript, _ := cmd.Flags().GetString("transcript")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		slog.Info("Starting quill HTTP server", "addr", addr)
		return cli.Serve(ctx, cli.ServeOptions{
			ConfigPath:    configPath,
			Addr:          addr,
			Debug:         debug,
			TranscriptURL: transcript,
			Err:           cmd.ErrOrStderr(),
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("transcript", "", "Transcript store (redis://host:port/db); in memory when empty")
}
