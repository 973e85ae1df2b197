package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "schemakit",
		Short: "Schema-driven entity and relationship engine",
		Long: `Schemakit turns declarative JSON table documents into validated CRUD,
context-filtered schema views, and relationship-aware queries.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default schemakit.yml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
