// Package commands defines the corpus-engine CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "corpus-engine",
	Short: "Corpus Engine - batch document intelligence pipeline",
	Long: `Corpus Engine converts source documents to Markdown, classifies them,
recognizes and normalizes entities, extracts semantic facts, and writes
enriched Markdown with a JSON sidecar per document.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
