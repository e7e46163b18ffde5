package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"index-returns/internal/app"
	"index-returns/internal/period"
)

var (
	statsQuery  queryFlags
	statsPeriod string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the return distribution of each index for one period",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := statsQuery.options()
		if err != nil {
			return err
		}
		p, err := period.Parse(statsPeriod)
		if err != nil {
			return fmt.Errorf("invalid --period value: %w", err)
		}
		return getApp().Stats(cmd.Context(), app.StatsOptions{QueryOptions: query, Period: p})
	},
}

func init() {
	statsQuery.register(statsCmd)
	statsCmd.Flags().StringVarP(&statsPeriod, "period", "p", "1Y", "Period to summarise (1Y, 3Y, 5Y, 7Y, 10Y)")
}
