package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics for the data directory",
	Long: `Print per-table row counts for the tables stored in the data
directory.

Example:
  verdandi stats --data-dir=./data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		db := engine.NewDB()
		store, err := storage.Open(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		if err := store.LoadAll(db); err != nil {
			return fmt.Errorf("failed to load tables: %w", err)
		}

		totalRows := 0
		for _, name := range db.TableNames() {
			t, ok := db.Table(name)
			if !ok {
				continue
			}
			cmd.Printf("%-24s %8d rows, %d columns\n", t.Name(), t.Size(), t.ColumnCount())
			totalRows += t.Size()
		}
		cmd.Printf("%d tables, %d rows total\n", len(db.TableNames()), totalRows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
