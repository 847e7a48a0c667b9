package cmd

import (
	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X github.com/ca-srg/leakscope/cmd.Version=...".
var Version = "dev"

var (
	envFile     string
	sourcesFile string
)

var rootCmd = &cobra.Command{
	Use:   "leakscope",
	Short: "LeakScope - breach data search and identity correlation",
	Long: `LeakScope searches configured breach and leak sources (OpenSearch indices and
RediSearch indexes) for an identifier, ranks the matches, optionally correlates them
into identities with a risk level, and exports the results as CSV.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&sourcesFile, "sources", "", "Sources file (overrides SOURCES_FILE)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpServerCmd)
}
