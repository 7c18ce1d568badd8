package main

import (
	"context"
	"os"

	"github.com/aretw0/quill/internal/cli"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Research a topic and save the report",
	Long: `Reads a topic (from --topic or a prompt), runs the research pipeline and prints
every message as it is produced. The writer saves the report as a .docx file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		topic, _ := cmd.Flags().GetString("topic")
		render, _ := cmd.Flags().GetBool("render")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		transcript, _ := cmd.Flags().GetString("transcript")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		tty := tui.IsTerminal(os.Stdout)
		return cli.Run(ctx, cli.RunOptions{
			ConfigPath:    configPath,
			Topic:         topic,
			Render:        render,
			Debug:         debug,
			MetricsAddr:   metricsAddr,
			TranscriptURL: transcript,
			In:            os.Stdin,
			Out:           os.Stdout,
			Err:           os.Stderr,
			Profile:       tui.Profile(os.Stdout),
			Banner:        tty,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("topic", "t", "", "Topic to research (prompted when empty)")
	runCmd.Flags().Bool("render", false, "Render the final report in the terminal")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
	runCmd.Flags().String("transcript", "", "Record the run transcript (redis://host:port/db)")

	// 'run' is the default when no command is provided.
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
	rootCmd.RunE = runCmd.RunE
}
