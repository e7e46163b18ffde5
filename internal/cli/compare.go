package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"index-returns/internal/app"
	"index-returns/internal/period"
)

var (
	compareQuery   queryFlags
	comparePeriods []string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Print aligned annualized returns and alpha for several indices",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := compareQuery.options()
		if err != nil {
			return err
		}
		opts := app.CompareOptions{QueryOptions: query}
		for _, raw := range comparePeriods {
			p, err := period.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid --period value: %w", err)
			}
			opts.Periods = append(opts.Periods, p)
		}
		return getApp().Compare(cmd.Context(), opts)
	},
}

func init() {
	compareQuery.register(compareCmd)
	compareCmd.Flags().StringSliceVarP(&comparePeriods, "period", "p", nil, "Periods to print (1Y, 3Y, 5Y, 7Y, 10Y); all when omitted")
}
