package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "guardchain",
	Short: "Content validation pipelines for LLM input and output",
	Long:  "Runs data through configurable guard chains: length and content checks, PII and secret scrubbing, prompt-injection screening, rate limiting, and duplicate detection.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
