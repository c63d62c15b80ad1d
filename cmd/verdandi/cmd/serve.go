package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/verdandi/pkg/config"
	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/notify"
	"github.com/ssargent/verdandi/pkg/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the VerdandiDB REST API server.

Tables are loaded from the data directory on startup, and a change
notification coordinator is attached so live query results stay fresh.

Examples:
  verdandi serve --api-key=mysecretkey --port=9200
  verdandi serve --config=~/.config/verdandi/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		apiKey, _ := cmd.Flags().GetString("api-key")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		configPath, _ := cmd.Flags().GetString("config")
		enableNotify, _ := cmd.Flags().GetBool("notify")

		// Flags override the config file; the config file fills in gaps
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(configPath) {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				cmd.Printf("Error loading config: %v\n", err)
				os.Exit(1)
			}
			if apiKey == "" {
				apiKey = cfg.Security.ClientAPIKey
			}
			if !cmd.Flags().Changed("port") {
				port = cfg.Port
			}
			if !cmd.Flags().Changed("data-dir") {
				dataDir = cfg.DataDir
			}
			if !cmd.Flags().Changed("notify") {
				enableNotify = cfg.Notify.Enabled
			}
		}

		if apiKey == "" {
			cmd.Println("Error: --api-key is required (or run 'verdandi init' first)")
			os.Exit(1)
		}
		if dataDir == "" {
			dataDir = "./data"
		}
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			cmd.Printf("Error creating data directory: %v\n", err)
			os.Exit(1)
		}

		db := engine.NewDB()

		store, err := storage.Open(dataDir)
		if err != nil {
			cmd.Printf("Error opening storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := store.LoadAll(db); err != nil {
			cmd.Printf("Error loading tables: %v\n", err)
			os.Exit(1)
		}
		cmd.Printf("Loaded %d tables from %s\n", len(db.TableNames()), dataDir)

		if enableNotify {
			coord := notify.NewCoordinator(db)
			defer coord.Close()
		}

		starter := container.GetServerFactory().CreateServerStarter()
		if err := starter.StartServer(db, store, port, apiKey, dataDir); err != nil {
			cmd.Printf("Error starting server: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 9200, "Port to listen on")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
	serveCmd.Flags().String("config", "", "Path to a configuration file")
	serveCmd.Flags().Bool("notify", true, "Enable change notifications")
}
