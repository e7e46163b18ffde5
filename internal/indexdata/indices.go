package indexdata

import (
	"context"

	"golang.org/x/sync/errgroup"

	"index-returns/internal/period"
	"index-returns/internal/table"
)

// Index describes one index available in the returns table.
type Index struct {
	Name      string                 `json:"name"`
	Periods   []period.Period        `json:"periods"`
	Inception *table.ObservationDate `json:"inception"`
}

// Indices lists every catalogued index with its inception date. Inception
// lookups run concurrently; a failed lookup leaves Inception nil.
func (r *Repository) Indices(ctx context.Context) ([]Index, error) {
	snap, err := r.Snapshot()
	if err != nil {
		return nil, err
	}

	names := snap.Catalog.Names()
	out := make([]Index, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.FanOutLimit)
	for i, name := range names {
		out[i] = Index{Name: name, Periods: append([]period.Period(nil), snap.Catalog[name]...)}
		g.Go(func() error {
			out[i].Inception = r.inception(gctx, snap, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// inception finds the earliest recorded date for an index: the first level
// when a levels column exists, otherwise the first 1Y (or longest available)
// return.
func (r *Repository) inception(ctx context.Context, snap *Snapshot, name string) *table.ObservationDate {
	logger := r.logger.With().Str("index", name).Logger()

	if col, ok := table.ResolveLevelColumn(snap.LevelColumns, name, r.opts.LevelsKey); ok {
		key, found, err := r.source.MinKeyWhereNotNull(ctx, r.opts.LevelsTable, r.opts.LevelsKey, col)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("inception lookup on levels failed")
		case found:
			return observation(key)
		}
	}

	for _, p := range snap.Catalog[name] {
		col, ok := table.ResolveColumn(snap.Columns, name, p)
		if !ok {
			continue
		}
		key, found, err := r.source.MinKeyWhereNotNull(ctx, r.opts.ReturnsTable, r.opts.ReturnsKey, col)
		if err != nil {
			logger.Warn().Err(err).Stringer("period", p).Msg("inception lookup on returns failed")
			return nil
		}
		if found {
			return observation(key)
		}
	}
	return nil
}

func observation(key string) *table.ObservationDate {
	day, err := table.ParseDate(key)
	if err != nil {
		return &table.ObservationDate{Key: key}
	}
	return &table.ObservationDate{Key: key, Day: day}
}
