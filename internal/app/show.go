package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/guregu/null/v6"

	"index-returns/internal/comparison"
	"index-returns/internal/period"
	"index-returns/internal/stats"
)

// CompareOptions configure the compare command.
type CompareOptions struct {
	QueryOptions
	// Periods limits the printed periods; empty prints all.
	Periods []period.Period
}

// Compare prints the aligned return series of a comparison.
func (a *App) Compare(ctx context.Context, opts CompareOptions) error {
	st, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	cmp, err := st.engine.Compare(ctx, opts.request())
	if err != nil {
		return err
	}
	if opts.JSON {
		return a.printJSON(cmp)
	}

	a.printNotices(cmp.Notices)
	periods := opts.Periods
	if len(periods) == 0 {
		periods = period.All
	}
	for _, p := range periods {
		res := cmp.Result(p)
		if res == nil {
			continue
		}
		a.printResult(res)
	}
	return nil
}

func (a *App) printResult(res *comparison.Result) {
	title := res.Period.String()
	if res.Synthetic {
		title += " (synthetic)"
	}
	if len(res.Estimated) > 0 {
		title += " estimated: " + strings.Join(res.Estimated, ", ")
	}
	fmt.Fprintf(a.Out, "\n== %s ==\n", title)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(writer, "Date\t%s\t\n", strings.Join(res.Keys, "\t"))
	for i, d := range res.Dates {
		cells := make([]string, len(res.Keys))
		for k, key := range res.Keys {
			cells[k] = formatPercent(res.Values(key)[i])
		}
		fmt.Fprintf(writer, "%s\t%s\t\n", d, strings.Join(cells, "\t"))
	}
	writer.Flush()
}

// Stats prints the aggregate statistics of every series for one period.
func (a *App) Stats(ctx context.Context, opts StatsOptions) error {
	st, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	out, err := st.engine.Stats(ctx, opts.request(), opts.Period)
	if err != nil {
		return err
	}
	if opts.JSON {
		return a.printJSON(out)
	}

	a.printNotices(out.Notices)
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Series\tCount\tMin\tMedian\tMax\tStdDev\t<0%\t0-8%\t8-12%\t12-20%\t>=20%")
	for _, key := range sortedKeys(out.Statistics) {
		s := out.Statistics[key]
		fmt.Fprintf(writer, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			key, s.Count, s.Min, s.Median, s.Max, s.StdDev, formatDistribution(s.Distribution))
	}
	return writer.Flush()
}

// Indices lists the catalogued indices with inception dates and periods.
func (a *App) Indices(ctx context.Context, asJSON bool) error {
	st, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	indices, err := st.engine.Indices(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return a.printJSON(indices)
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Index\tInception\tPeriods")
	for _, idx := range indices {
		inception := "-"
		if idx.Inception != nil {
			inception = idx.Inception.String()
		}
		names := make([]string, len(idx.Periods))
		for i, p := range idx.Periods {
			names[i] = p.String()
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", idx.Name, inception, strings.Join(names, " "))
	}
	return writer.Flush()
}

// Index prints the single-index view.
func (a *App) Index(ctx context.Context, name string, asJSON bool) error {
	st, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	view, err := st.engine.IndexView(ctx, name)
	if err != nil {
		return err
	}
	if asJSON {
		return a.printJSON(view)
	}

	fmt.Fprintf(a.Out, "Index:     %s\n", view.Name)
	if view.Inception != nil {
		fmt.Fprintf(a.Out, "Inception: %s\n", view.Inception)
	}
	if view.AsOf != nil {
		fmt.Fprintf(a.Out, "As of:     %s\n", view.AsOf)
	}
	fmt.Fprintf(a.Out, "History:   %d levels\n\n", len(view.History))

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Period\tReturn\tSharpe\tCount\tMedian\tStdDev")
	for _, ps := range view.Periods {
		ret := formatPercent(ps.Return)
		if ps.Estimated {
			ret += "*"
		}
		sharpe := "-"
		if ps.Sharpe.Valid {
			sharpe = fmt.Sprintf("%.2f", ps.Sharpe.Float64)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%.2f\t%.2f\n",
			ps.Period, ret, sharpe, ps.Statistics.Count, ps.Statistics.Median, ps.Statistics.StdDev)
	}
	return writer.Flush()
}

func (a *App) printNotices(notices []comparison.Notice) {
	for _, n := range notices {
		fmt.Fprintf(a.Out, "note: %s\n", n.Message)
	}
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPercent(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", v.Float64)
}

func formatDistribution(d stats.Distribution) string {
	return fmt.Sprintf("%.1f\t%.1f\t%.1f\t%.1f\t%.1f", d.Negative, d.ZeroToEight, d.EightToTwelve, d.TwelveToTwenty, d.TwentyPlus)
}

// sortedKeys puts index series before alpha series, each group by name.
func sortedKeys(m map[string]stats.Statistics) []string {
	var plain, alphas []string
	for k := range m {
		if comparison.IsAlphaKey(k) {
			alphas = append(alphas, k)
		} else {
			plain = append(plain, k)
		}
	}
	slices.Sort(plain)
	slices.Sort(alphas)
	return append(plain, alphas...)
}
