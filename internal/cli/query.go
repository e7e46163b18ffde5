package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"index-returns/internal/app"
	"index-returns/internal/table"
)

// queryFlags are shared by compare, stats and export.
type queryFlags struct {
	indices   []string
	benchmark string
	from      string
	to        string
	json      bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.indices, "indices", "i", nil, "Indices to compare (comma separated or repeated)")
	cmd.Flags().StringVarP(&f.benchmark, "benchmark", "b", "", "Benchmark index for alpha (defaults to the first index)")
	cmd.Flags().StringVar(&f.from, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&f.to, "to", "", "End date (YYYY-MM-DD, inclusive)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON instead of tables")
}

func (f *queryFlags) options() (app.QueryOptions, error) {
	opts := app.QueryOptions{Indices: f.indices, Benchmark: f.benchmark, JSON: f.json}
	if len(f.indices) == 0 {
		return opts, fmt.Errorf("--indices is required")
	}
	var err error
	if opts.From, err = parseDateFlag("from", f.from); err != nil {
		return opts, err
	}
	if opts.To, err = parseDateFlag("to", f.to); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := table.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return &day, nil
}
