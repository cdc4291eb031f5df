package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cortexctl",
	Short:         "Operator tooling for the CortexUI dashboard",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("backend-url", "", "CortexDB API base URL (env CORTEXCTL_BACKEND_URL)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "request timeout (env CORTEXCTL_TIMEOUT)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportTemplateCmd)
}
