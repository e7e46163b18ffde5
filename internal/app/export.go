package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"index-returns/internal/comparison"
	"index-returns/internal/table"
)

// Export writes one comparison period as CSV and/or PNG. Without explicit
// paths both files go to the export directory.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if !opts.Period.Valid() {
		return fmt.Errorf("unsupported period %d", int(opts.Period))
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		dir := a.Config.ResolveExportDir(opts.Dir)
		base := fmt.Sprintf("compare-%s", opts.Period)
		opts.CSVPath = filepath.Join(dir, base+".csv")
		opts.PNGPath = filepath.Join(dir, base+".png")
	}

	st, err := a.load(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	cmp, err := st.engine.Compare(ctx, opts.request())
	if err != nil {
		return err
	}
	res := cmp.Result(opts.Period)
	if res == nil || len(res.Dates) == 0 {
		a.Logger.Info().Msg("nothing to export for the requested window")
		return nil
	}
	for _, n := range cmp.Notices {
		a.Logger.Info().Str("code", n.Code).Msg(n.Message)
	}

	a.Logger.Info().
		Str("period", res.Period.String()).
		Int("dates", len(res.Dates)).
		Strs("series", res.Keys).
		Msg("exporting comparison")

	if opts.CSVPath != "" {
		if err := writeResultCSV(opts.CSVPath, res); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		a.Logger.Info().Str("path", opts.CSVPath).Msg("csv written")
	}

	if opts.PNGPath != "" {
		err := writeResultPNG(opts.PNGPath, res, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight)
		if errors.Is(err, errNothingToPlot) {
			a.Logger.Warn().Msg("no series has enough dated points to plot; png skipped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("write png: %w", err)
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("png written")
	}
	return nil
}

var errNothingToPlot = errors.New("nothing to plot")

func writeResultCSV(path string, res *comparison.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	columns := append([]string{"date"}, res.Keys...)
	records := make([][]string, len(res.Dates))
	for i, d := range res.Dates {
		rec := make([]string, 0, len(columns))
		rec = append(rec, d.String())
		for _, key := range res.Keys {
			v := res.Values(key)[i]
			if v.Valid {
				rec = append(rec, strconv.FormatFloat(v.Float64, 'f', 4, 64))
			} else {
				rec = append(rec, "")
			}
		}
		records[i] = rec
	}
	return table.WriteCSV(file, columns, records)
}

func writeResultPNG(path string, res *comparison.Result, width, height int) error {
	var series []chart.Series
	for _, key := range res.Keys {
		values := res.Values(key)
		var (
			x []time.Time
			y []float64
		)
		for i, d := range res.Dates {
			if d.Day.IsZero() || !values[i].Valid {
				continue
			}
			x = append(x, d.Day)
			y = append(y, values[i].Float64)
		}
		if len(x) < 2 {
			continue
		}
		ts := chart.TimeSeries{Name: key, XValues: x, YValues: y}
		if comparison.IsAlphaKey(key) {
			ts.YAxis = chart.YAxisSecondary
		}
		series = append(series, ts)
	}
	if len(series) == 0 {
		return errNothingToPlot
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	percentFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f%%")
	}
	title := fmt.Sprintf("%s annualized returns", res.Period)
	if res.Synthetic {
		title += " (synthetic)"
	}
	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Return (%)",
			ValueFormatter: percentFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Alpha (%)",
			ValueFormatter: percentFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
