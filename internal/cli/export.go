package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"index-returns/internal/app"
	"index-returns/internal/period"
)

var (
	exportQuery   queryFlags
	exportPeriod  string
	exportDir     string
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one comparison period as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := exportQuery.options()
		if err != nil {
			return err
		}
		p, err := period.Parse(exportPeriod)
		if err != nil {
			return fmt.Errorf("invalid --period value: %w", err)
		}

		opts := app.ExportOptions{
			QueryOptions: query,
			Period:       p,
			Dir:          exportDir,
			PNGPath:      exportPNGPath,
			CSVPath:      exportCSVPath,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportQuery.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportPeriod, "period", "p", "1Y", "Period to export (1Y, 3Y, 5Y, 7Y, 10Y)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Directory for default file names (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
