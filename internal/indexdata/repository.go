// Package indexdata holds the loaded view of the index tables: which
// indices exist, which periods they cover and which dates were recorded.
// A Repository is constructed explicitly, initialised once and reloaded on
// demand; readers always see a complete snapshot.
package indexdata

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"index-returns/internal/period"
	"index-returns/internal/table"
)

// ErrNotReady is returned by reads issued before a successful Init.
var ErrNotReady = errors.New("indexdata: repository not initialised")

// Options name the tables and tune the repository.
type Options struct {
	ReturnsTable  string
	ReturnsKey    string
	LevelsTable   string
	LevelsKey     string
	HeaderPattern string
	FanOutLimit   int
	RiskFreeRate  float64
	StrictPercent bool
}

// Snapshot is an immutable view of the returns table's shape.
type Snapshot struct {
	Columns      []string
	Catalog      table.Catalog
	Dates        []table.ObservationDate
	LevelColumns []string
	Quality      Quality
	LoadedAt     time.Time
}

// Quality lists data problems found while loading.
type Quality struct {
	DuplicateKeys   []string                   `json:"duplicateKeys,omitempty"`
	UnparseableKeys []string                   `json:"unparseableKeys,omitempty"`
	MissingPeriods  map[string][]period.Period `json:"missingPeriods,omitempty"`
	LevelsMissing   bool                       `json:"levelsMissing,omitempty"`
}

// Clean reports whether nothing was flagged.
func (q Quality) Clean() bool {
	return len(q.DuplicateKeys) == 0 && len(q.UnparseableKeys) == 0 && len(q.MissingPeriods) == 0 && !q.LevelsMissing
}

// MissingPeriodNames renders MissingPeriods with period labels.
func (q Quality) MissingPeriodNames() map[string][]string {
	if len(q.MissingPeriods) == 0 {
		return nil
	}
	out := make(map[string][]string, len(q.MissingPeriods))
	for name, ps := range q.MissingPeriods {
		for _, p := range ps {
			out[name] = append(out[name], p.String())
		}
	}
	return out
}

// Repository serves snapshots of the index tables.
type Repository struct {
	source table.Source
	opts   Options
	logger zerolog.Logger
	snap   atomic.Pointer[Snapshot]
}

// New constructs a Repository. Call Init before reading from it.
func New(source table.Source, opts Options, logger zerolog.Logger) *Repository {
	if opts.FanOutLimit <= 0 {
		opts.FanOutLimit = 4
	}
	return &Repository{
		source: source,
		opts:   opts,
		logger: logger.With().Str("component", "indexdata").Logger(),
	}
}

// Init loads the first snapshot.
func (r *Repository) Init(ctx context.Context) error {
	_, err := r.Reload(ctx)
	return err
}

// Ready reports whether a snapshot is available.
func (r *Repository) Ready() bool {
	return r.snap.Load() != nil
}

// Snapshot returns the current snapshot.
func (r *Repository) Snapshot() (*Snapshot, error) {
	s := r.snap.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s, nil
}

// Options returns the repository's configuration.
func (r *Repository) Options() Options {
	return r.opts
}

// Reload reads the table shapes again and swaps the snapshot. A failed
// reload keeps the previous snapshot.
func (r *Repository) Reload(ctx context.Context) (*Snapshot, error) {
	columns, err := r.source.ListColumns(ctx, r.opts.ReturnsTable)
	if err != nil {
		return nil, fmt.Errorf("load returns columns: %w", err)
	}
	keys, err := r.source.ListKeys(ctx, r.opts.ReturnsTable, r.opts.ReturnsKey)
	if err != nil {
		return nil, fmt.Errorf("load returns keys: %w", err)
	}

	recorded := make([]string, 0, len(keys))
	for _, k := range keys {
		if table.MatchLike(r.opts.HeaderPattern, k) {
			continue
		}
		recorded = append(recorded, k)
	}
	scan := table.ScanDates(recorded)
	if len(scan.Dates) == 0 {
		return nil, fmt.Errorf("load returns dates: %w", table.ErrDataUnavailable)
	}

	catalog := table.BuildCatalog(columns)
	snap := &Snapshot{
		Columns:  columns,
		Catalog:  catalog,
		Dates:    scan.Dates,
		LoadedAt: time.Now().UTC(),
		Quality: Quality{
			DuplicateKeys:   scan.Duplicates,
			UnparseableKeys: scan.Unparseable,
		},
	}
	for _, name := range catalog.Names() {
		if missing := catalog.Missing(name); len(missing) > 0 {
			if snap.Quality.MissingPeriods == nil {
				snap.Quality.MissingPeriods = make(map[string][]period.Period)
			}
			snap.Quality.MissingPeriods[name] = missing
		}
	}

	if r.opts.LevelsTable != "" {
		levelColumns, err := r.source.ListColumns(ctx, r.opts.LevelsTable)
		if err != nil {
			// Levels only feed the single-index view.
			r.logger.Warn().Err(err).Str("table", r.opts.LevelsTable).Msg("levels table unavailable")
			snap.Quality.LevelsMissing = true
		} else {
			snap.LevelColumns = levelColumns
		}
	}

	r.snap.Store(snap)
	r.logger.Info().
		Int("indices", len(catalog)).
		Int("dates", len(scan.Dates)).
		Int("duplicates", len(scan.Duplicates)).
		Int("unparseable", len(scan.Unparseable)).
		Msg("index data loaded")
	return snap, nil
}

// Rows fetches the returns rows recorded under the given dates, one per
// key; the first stored row for a key wins.
func (r *Repository) Rows(ctx context.Context, dates []table.ObservationDate) ([]table.Row, error) {
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = d.Key
	}
	rows, err := r.source.GetRowsByKeys(ctx, r.opts.ReturnsTable, r.opts.ReturnsKey, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch returns rows: %w", err)
	}
	seen := make(map[string]struct{}, len(rows))
	unique := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		key := row.Key(r.opts.ReturnsKey)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, row)
	}
	return unique, nil
}
