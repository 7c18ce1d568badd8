package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/quill/internal/cli"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill researches a topic and writes a report",
	Long: `Quill runs a research pipeline: a researcher gathers facts with web search and
a calculator, then a writer turns them into a structured .docx report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Run errors were already reported with the role of the last message.
		var runErr *domain.RunError
		if !errors.As(err, &runErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to quill.yaml (default: ./quill.yaml when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}
