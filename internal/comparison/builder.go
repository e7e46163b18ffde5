// Package comparison assembles per-period aligned return series for a set
// of indices and derives their alpha against a benchmark.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"

	"index-returns/internal/period"
	"index-returns/internal/synthetic"
	"index-returns/internal/table"
)

// ErrNoIndices is returned when a build is requested without any index.
var ErrNoIndices = errors.New("comparison: no indices requested")

// Input is everything a build needs. Builders never modify it.
type Input struct {
	Indices   []string
	Benchmark string
	Dates     []table.ObservationDate
	Rows      []table.Row
	Columns   []string
	KeyColumn string
}

// Options configure a Builder.
type Options struct {
	Estimator synthetic.Estimator
	Generator synthetic.Generator
	// StrictPercent turns unparseable percentage cells into null instead of 0.
	StrictPercent bool
}

// Builder turns raw return rows into a Comparison.
type Builder struct {
	estimator synthetic.Estimator
	generator synthetic.Generator
	strict    bool
	logger    zerolog.Logger
}

// NewBuilder constructs a Builder, defaulting to the heuristic estimator and
// the trend generator.
func NewBuilder(opts Options, logger zerolog.Logger) *Builder {
	if opts.Estimator == nil {
		opts.Estimator = synthetic.Heuristic{}
	}
	if opts.Generator == nil {
		opts.Generator = synthetic.NewTrendGenerator(uint64(time.Now().UnixNano()))
	}
	return &Builder{
		estimator: opts.Estimator,
		generator: opts.Generator,
		strict:    opts.StrictPercent,
		logger:    logger.With().Str("component", "comparison").Logger(),
	}
}

// Build runs the per-period assembly for every supported period.
func (b *Builder) Build(ctx context.Context, in Input) (*Comparison, error) {
	indices := cleanIndices(in.Indices)
	if len(indices) == 0 {
		return nil, ErrNoIndices
	}
	benchmark := strings.TrimSpace(in.Benchmark)
	if benchmark == "" {
		benchmark = indices[0]
	}
	series := indices
	if !contains(indices, benchmark) {
		series = append(append([]string(nil), indices...), benchmark)
	}

	dates := chronological(in.Dates)
	rows := indexRows(in.Rows, in.KeyColumn)

	cmp := &Comparison{
		Indices:   indices,
		Benchmark: benchmark,
		Results:   make([]*Result, 0, len(period.All)),
	}
	for _, p := range period.All {
		res, err := b.buildPeriod(ctx, p, indices, series, benchmark, dates, rows, in.Columns)
		if err != nil {
			return nil, fmt.Errorf("build %s comparison: %w", p, err)
		}
		cmp.Results = append(cmp.Results, res)
	}

	var estimated, generated []string
	for _, res := range cmp.Results {
		if len(res.Estimated) > 0 {
			estimated = append(estimated, res.Period.String())
		}
		if res.Synthetic {
			generated = append(generated, res.Period.String())
		}
	}
	if len(estimated) > 0 {
		cmp.AddNotice(NoticeEstimatedReturns, "returns estimated from shorter horizons for %s", strings.Join(estimated, ", "))
	}
	if len(generated) > 0 {
		cmp.AddNotice(NoticeSyntheticData, "no recorded data; synthetic series shown for %s", strings.Join(generated, ", "))
	}
	return cmp, nil
}

func (b *Builder) buildPeriod(ctx context.Context, p period.Period, indices, series []string, benchmark string, dates []table.ObservationDate, rows map[string]table.Row, columns []string) (*Result, error) {
	res := &Result{
		Period: p,
		Dates:  dates,
		Series: make(map[string][]null.Float, len(series)*2),
	}

	for _, index := range series {
		values := b.lookup(index, p, dates, rows, columns)
		if p >= period.FiveYear && !anyValid(values) {
			if b.estimate(index, p, dates, rows, columns, values) {
				res.Estimated = append(res.Estimated, index)
			}
		}
		res.Series[index] = values
		res.Keys = append(res.Keys, index)
	}

	// Only the requested indices decide the fallback; an external benchmark
	// with data keeps its recorded values.
	if !b.anyRecorded(res, indices) {
		targets := indices
		if !contains(indices, benchmark) && !anyValid(res.Series[benchmark]) {
			targets = series
		}
		if err := b.generate(ctx, res, targets, len(dates)); err != nil {
			return nil, err
		}
	}

	// An external benchmark still yields alpha for a single requested index.
	if len(series) >= 2 {
		base := res.Series[benchmark]
		for _, index := range series {
			if index == benchmark {
				continue
			}
			key := AlphaKey(index, benchmark)
			res.Series[key] = alpha(res.Series[index], base)
			res.Keys = append(res.Keys, key)
		}
	}
	return res, nil
}

func (b *Builder) lookup(index string, p period.Period, dates []table.ObservationDate, rows map[string]table.Row, columns []string) []null.Float {
	values := make([]null.Float, len(dates))
	col, ok := table.ResolveColumn(columns, index, p)
	if !ok {
		b.logger.Debug().Str("index", index).Stringer("period", p).Msg("no returns column for index")
		return values
	}
	for i, d := range dates {
		values[i] = rows[strings.TrimSpace(d.Key)].Percent(col, b.strict)
	}
	return values
}

// estimate fills values in place from each row's 1Y/3Y cells and reports
// whether any slot received an estimate.
func (b *Builder) estimate(index string, p period.Period, dates []table.ObservationDate, rows map[string]table.Row, columns []string, values []null.Float) bool {
	oneCol, hasOne := table.ResolveColumn(columns, index, period.OneYear)
	threeCol, hasThree := table.ResolveColumn(columns, index, period.ThreeYear)
	if !hasOne && !hasThree {
		return false
	}
	filled := false
	for i, d := range dates {
		row := rows[strings.TrimSpace(d.Key)]
		var one, three null.Float
		if hasOne {
			one = row.Percent(oneCol, b.strict)
		}
		if hasThree {
			three = row.Percent(threeCol, b.strict)
		}
		if v := b.estimator.Estimate(one, three).For(p); v.Valid {
			values[i] = v
			filled = true
		}
	}
	if filled {
		b.logger.Debug().Str("index", index).Stringer("period", p).Msg("filled returns from estimator")
	}
	return filled
}

func (b *Builder) anyRecorded(res *Result, series []string) bool {
	for _, index := range series {
		if anyValid(res.Series[index]) {
			return true
		}
	}
	return false
}

// generate is the only place synthetic series enter a result.
func (b *Builder) generate(ctx context.Context, res *Result, series []string, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	generated, err := b.generator.Generate(ctx, series, res.Period, n)
	if err != nil {
		return fmt.Errorf("generate synthetic series: %w", err)
	}
	for _, index := range series {
		values := generated[index]
		if len(values) != n {
			return fmt.Errorf("generate synthetic series: %s has %d points, want %d", index, len(values), n)
		}
		res.Series[index] = values
	}
	kept := res.Estimated[:0]
	for _, index := range res.Estimated {
		if !contains(series, index) {
			kept = append(kept, index)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	res.Estimated = kept
	res.Synthetic = true
	b.logger.Info().Strs("indices", series).Stringer("period", res.Period).Int("points", n).Msg("no recorded returns; using synthetic series")
	return nil
}

func alpha(values, base []null.Float) []null.Float {
	out := make([]null.Float, len(values))
	for i := range values {
		if i < len(base) && values[i].Valid && base[i].Valid {
			out[i] = null.FloatFrom(values[i].Float64 - base[i].Float64)
		}
	}
	return out
}

func anyValid(values []null.Float) bool {
	for _, v := range values {
		if v.Valid {
			return true
		}
	}
	return false
}

func cleanIndices(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// chronological returns a sorted copy without duplicate days.
func chronological(dates []table.ObservationDate) []table.ObservationDate {
	out := make([]table.ObservationDate, 0, len(dates))
	seen := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		if _, dup := seen[d.Day]; dup {
			continue
		}
		seen[d.Day] = struct{}{}
		out = append(out, d)
	}
	table.SortDates(out)
	return out
}

// indexRows keys rows by their trimmed key; the first row for a key wins.
func indexRows(rows []table.Row, keyColumn string) map[string]table.Row {
	out := make(map[string]table.Row, len(rows))
	for _, r := range rows {
		key := r.Key(keyColumn)
		if _, dup := out[key]; dup {
			continue
		}
		out[key] = r
	}
	return out
}
