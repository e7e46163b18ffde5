package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"index-returns/internal/app"
)

var (
	processPeriods []int
	processCSVPath string
	processDryRun  bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Rebuild the annualized returns table from daily index levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, years := range processPeriods {
			if years <= 0 {
				return fmt.Errorf("--periods must be positive, got %d", years)
			}
		}
		opts := app.ProcessOptions{
			Periods: processPeriods,
			CSVPath: processCSVPath,
			DryRun:  processDryRun,
		}
		return getApp().Process(cmd.Context(), opts)
	},
}

func init() {
	processCmd.Flags().IntSliceVar(&processPeriods, "periods", nil, "Horizons in years (defaults to config)")
	processCmd.Flags().StringVar(&processCSVPath, "csv", "", "Write the table to this CSV file instead of the database")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "Compute without writing anything")
}
