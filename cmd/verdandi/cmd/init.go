package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/verdandi/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize VerdandiDB for local development",
	Long: `Initialize VerdandiDB configuration and data directory.

This command will:
- Create the data directory
- Generate a configuration file with secure random keys
- Print the client API key needed to talk to the server

Examples:
  verdandi init
  verdandi init --data-dir=./data --config=./verdandi.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		configPath, _ := cmd.Flags().GetString("config")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if dataDir == "" {
			dataDir = "./data"
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Already initialized. Use --force to regenerate keys.\n")
			cmd.Printf("Configuration: %s\n", configPath)
			return
		}

		cmd.Printf("Initializing VerdandiDB...\n")
		cmd.Printf("Data directory: %s\n", dataDir)

		if err := os.MkdirAll(dataDir, 0750); err != nil {
			cmd.Printf("Error creating data directory: %v\n", err)
			os.Exit(1)
		}

		cfg, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			cmd.Printf("Error writing configuration: %v\n", err)
			os.Exit(1)
		}

		cmd.Printf("Initialization completed successfully.\n")
		cmd.Printf("Configuration: %s\n", configPath)
		cmd.Printf("Client API key: %s\n", cfg.Security.ClientAPIKey)
		cmd.Printf("\nYou can now start the server with:\n")
		cmd.Printf("  verdandi serve --config=%s\n", configPath)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("config", "", "Path for the generated configuration file")
	initCmd.Flags().Bool("force", false, "Force reinitialization even if a configuration exists")
}
