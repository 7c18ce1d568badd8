package main

import (
	"context"
	"errors"

	"github.com/aretw0/quill/internal/cli"
	"github.com/aretw0/quill/internal/config"
	"github.com/spf13/cobra"
)

// transcriptCmd represents the transcript command
var transcriptCmd = &cobra.Command{
	Use:   "transcript [run-id]",
	Short: "Show a recorded run, or list recorded runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		url, _ := cmd.Flags().GetString("transcript")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if url != "" {
			cfg.Transcript.URL = url
		}
		if cfg.Transcript.URL == "" {
			return errors.New("no transcript store configured (use --transcript or transcript.url)")
		}

		ctx := context.Background()
		store, closeStore, err := cli.OpenTranscriptStore(ctx, cfg.Transcript)
		if err != nil {
			return err
		}
		defer closeStore()

		var runID string
		if len(args) == 1 {
			runID = args[0]
		}
		return cli.ShowTranscript(ctx, store, runID, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)

	transcriptCmd.Flags().String("transcript", "", "Transcript store (redis://host:port/db)")
}
