package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	flagURL   string
	flagKey   string
	flagJSON  bool
	flagDebug bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "formctl",
		Short: "CLI for the Formbot automation backend",
		Long:  "A command-line interface for starting form automation tasks, watching executions, analyzing pages and managing display sessions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "API server URL (env: FORMBOT_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "Internal API key (env: FORMBOT_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("formctl %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newExecutionsCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newVNCCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
