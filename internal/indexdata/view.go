package indexdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"index-returns/internal/period"
	"index-returns/internal/stats"
	"index-returns/internal/synthetic"
	"index-returns/internal/table"
)

// ErrUnknownIndex is returned for an index the catalog does not list.
var ErrUnknownIndex = errors.New("indexdata: unknown index")

// LevelPoint is one historical index level.
type LevelPoint struct {
	Date  table.ObservationDate `json:"date"`
	Level null.Float            `json:"level"`
}

// PeriodSummary is the single-index view of one period.
type PeriodSummary struct {
	Period     period.Period    `json:"period"`
	Return     null.Float       `json:"return"`
	Estimated  bool             `json:"estimated"`
	Sharpe     null.Float       `json:"sharpe"`
	Statistics stats.Statistics `json:"statistics"`
}

// IndexView gathers everything shown for a single index.
type IndexView struct {
	Name      string                 `json:"name"`
	Inception *table.ObservationDate `json:"inception"`
	AsOf      *table.ObservationDate `json:"asOf"`
	History   []LevelPoint           `json:"history"`
	Periods   []PeriodSummary        `json:"periods"`
}

// IndexView loads history, latest returns and per-period statistics for
// one index. The three reads run concurrently and each degrades on its
// own: empty history, null returns or zero statistics.
func (r *Repository) IndexView(ctx context.Context, name string, estimator synthetic.Estimator) (*IndexView, error) {
	snap, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	canonical, ok := r.lookupName(snap, name)
	if !ok {
		return nil, fmt.Errorf("index %q: %w", name, ErrUnknownIndex)
	}
	if estimator == nil {
		estimator = synthetic.Heuristic{}
	}

	view := &IndexView{Name: canonical, Periods: make([]PeriodSummary, len(period.All))}
	for i, p := range period.All {
		view.Periods[i].Period = p
	}

	var (
		latest  table.Row
		summary map[period.Period]stats.Statistics
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FanOutLimit)
	g.Go(func() error {
		view.Inception = r.inception(gctx, snap, canonical)
		return nil
	})
	g.Go(func() error {
		history, err := r.history(gctx, snap, canonical)
		if err != nil {
			r.logger.Warn().Err(err).Str("index", canonical).Msg("level history unavailable")
			history = []LevelPoint{}
		}
		view.History = history
		return nil
	})
	g.Go(func() error {
		row, err := r.source.GetLatestRow(gctx, r.opts.ReturnsTable, r.opts.ReturnsKey, r.opts.HeaderPattern)
		if err != nil {
			r.logger.Warn().Err(err).Str("index", canonical).Msg("latest returns unavailable")
			return nil
		}
		latest = row
		return nil
	})
	g.Go(func() error {
		s, err := r.statistics(gctx, snap, canonical)
		if err != nil {
			r.logger.Warn().Err(err).Str("index", canonical).Msg("return statistics unavailable")
			return nil
		}
		summary = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if latest != nil {
		view.AsOf = observation(latest.Key(r.opts.ReturnsKey))
	}
	returns := r.latestReturns(snap, canonical, latest, estimator)
	for i := range view.Periods {
		ps := &view.Periods[i]
		lr := returns[ps.Period]
		ps.Return = lr.value
		ps.Estimated = lr.estimated
		if lr.value.Valid {
			ps.Sharpe = null.FloatFrom(stats.SharpeRatio(lr.value.Float64, ps.Period, r.opts.RiskFreeRate))
		}
		ps.Statistics = summary[ps.Period]
	}
	return view, nil
}

func (r *Repository) lookupName(snap *Snapshot, name string) (string, bool) {
	names := snap.Catalog.Names()
	for _, m := range table.DefaultMatchers {
		for _, candidate := range names {
			if m.Match(candidate, name) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Repository) history(ctx context.Context, snap *Snapshot, name string) ([]LevelPoint, error) {
	col, ok := table.ResolveLevelColumn(snap.LevelColumns, name, r.opts.LevelsKey)
	if !ok {
		return []LevelPoint{}, nil
	}
	keys, err := r.source.ListKeys(ctx, r.opts.LevelsTable, r.opts.LevelsKey)
	if err != nil {
		return nil, fmt.Errorf("list level keys: %w", err)
	}
	scan := table.ScanDates(keys)
	rows, err := r.source.GetRowsByKeys(ctx, r.opts.LevelsTable, r.opts.LevelsKey, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch levels: %w", err)
	}
	byKey := make(map[string]table.Row, len(rows))
	for _, row := range rows {
		key := row.Key(r.opts.LevelsKey)
		if _, dup := byKey[key]; !dup {
			byKey[key] = row
		}
	}

	out := make([]LevelPoint, 0, len(scan.Dates))
	for _, d := range scan.Dates {
		level := byKey[strings.TrimSpace(d.Key)].Level(col)
		if !level.Valid {
			continue
		}
		out = append(out, LevelPoint{Date: d, Level: level})
	}
	return out, nil
}

func (r *Repository) statistics(ctx context.Context, snap *Snapshot, name string) (map[period.Period]stats.Statistics, error) {
	rows, err := r.Rows(ctx, snap.Dates)
	if err != nil {
		return nil, err
	}
	out := make(map[period.Period]stats.Statistics, len(period.All))
	for _, p := range period.All {
		col, ok := table.ResolveColumn(snap.Columns, name, p)
		if !ok {
			out[p] = stats.Statistics{}
			continue
		}
		values := make([]null.Float, 0, len(rows))
		for _, row := range rows {
			values = append(values, row.Percent(col, r.opts.StrictPercent))
		}
		out[p] = stats.Aggregate(values)
	}
	return out, nil
}

type latestReturn struct {
	value     null.Float
	estimated bool
}

// latestReturns reads the most recent return per period, estimating long
// horizons the row does not carry.
func (r *Repository) latestReturns(snap *Snapshot, name string, row table.Row, estimator synthetic.Estimator) map[period.Period]latestReturn {
	out := make(map[period.Period]latestReturn, len(period.All))
	if row == nil {
		return out
	}
	for _, p := range period.All {
		if col, ok := table.ResolveColumn(snap.Columns, name, p); ok {
			out[p] = latestReturn{value: row.Percent(col, r.opts.StrictPercent)}
		}
	}
	estimate := estimator.Estimate(out[period.OneYear].value, out[period.ThreeYear].value)
	for _, p := range []period.Period{period.FiveYear, period.SevenYear, period.TenYear} {
		if out[p].value.Valid {
			continue
		}
		if v := estimate.For(p); v.Valid {
			out[p] = latestReturn{value: v, estimated: true}
		}
	}
	return out
}
