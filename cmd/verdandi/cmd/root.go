package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/verdandi/pkg/di"
)

var container *di.Container

// SetContainer injects the dependency container. Called by main before
// Execute.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "verdandi",
	Short: "VerdandiDB - Embeddable table store with live queries",
	Long: `VerdandiDB is an embeddable table store with lazily evaluated
query results, change notifications, and a REST API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global data directory flag
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the store")
}
