package cli

import (
	"github.com/spf13/cobra"
)

var (
	indicesJSON bool
	indexJSON   bool
)

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "List indices with their inception dates and periods",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Indices(cmd.Context(), indicesJSON)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index NAME",
	Short: "Show history, latest returns and statistics for one index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Index(cmd.Context(), args[0], indexJSON)
	},
}

func init() {
	indicesCmd.Flags().BoolVar(&indicesJSON, "json", false, "Print JSON instead of a table")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "Print JSON instead of a table")
}
