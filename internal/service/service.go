package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"index-returns/internal/comparison"
	"index-returns/internal/indexdata"
	"index-returns/internal/notify"
	"index-returns/internal/period"
	"index-returns/internal/resolver"
	"index-returns/internal/stats"
	"index-returns/internal/synthetic"
	"index-returns/internal/table"
)

// ErrBadRequest marks requests the caller must fix.
var ErrBadRequest = errors.New("service: bad request")

// Request asks for a comparison of indices over an optional date range.
type Request struct {
	Indices   []string
	Benchmark string
	From      *time.Time
	To        *time.Time
}

// StatsResult holds per-series statistics for one period of a comparison.
type StatsResult struct {
	Period     period.Period               `json:"period"`
	Benchmark  string                      `json:"benchmark"`
	Synthetic  bool                        `json:"synthetic"`
	Estimated  []string                    `json:"estimated,omitempty"`
	Statistics map[string]stats.Statistics `json:"statistics"`
	Notices    []comparison.Notice         `json:"notices,omitempty"`
}

// Options tune the Engine.
type Options struct {
	Resolver  resolver.Options
	Estimator synthetic.Estimator
	// Alerts enables data-quality notifications after reloads.
	Alerts   bool
	Cooldown time.Duration
	Channels []string
	Table    string
}

// Engine answers comparison, statistics and index queries against a
// Repository.
type Engine struct {
	repo      *indexdata.Repository
	builder   *comparison.Builder
	notifier  notify.Notifier
	opts      Options
	logger    zerolog.Logger
	lastAlert time.Time
	lastIssue string
}

// New constructs the engine.
func New(repo *indexdata.Repository, builder *comparison.Builder, notifier notify.Notifier, opts Options, logger zerolog.Logger) *Engine {
	if opts.Estimator == nil {
		opts.Estimator = synthetic.Heuristic{}
	}
	return &Engine{
		repo:     repo,
		builder:  builder,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Compare resolves dates, fetches rows and builds the comparison for every period.
func (e *Engine) Compare(ctx context.Context, req Request) (*comparison.Comparison, error) {
	indices := splitIndices(req.Indices)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: at least one index is required", ErrBadRequest)
	}

	snap, err := e.repo.Snapshot()
	if err != nil {
		return nil, err
	}

	res, err := resolver.Resolve(snap.Dates, req.From, req.To, e.opts.Resolver)
	if err != nil {
		return nil, err
	}

	rows, err := e.repo.Rows(ctx, res.Dates)
	if err != nil {
		return nil, err
	}

	cmp, err := e.builder.Build(ctx, comparison.Input{
		Indices:   indices,
		Benchmark: req.Benchmark,
		Dates:     res.Dates,
		Rows:      rows,
		Columns:   snap.Columns,
		KeyColumn: e.repo.Options().ReturnsKey,
	})
	if err != nil {
		return nil, fmt.Errorf("build comparison: %w", err)
	}

	e.addResolutionNotices(cmp, res)
	e.logger.Debug().
		Strs("indices", cmp.Indices).
		Str("benchmark", cmp.Benchmark).
		Str("mode", string(res.Mode)).
		Int("dates", len(res.Dates)).
		Msg("comparison built")
	return cmp, nil
}

// Stats builds a comparison and aggregates every series of one period.
func (e *Engine) Stats(ctx context.Context, req Request, p period.Period) (*StatsResult, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: unsupported period %d", ErrBadRequest, int(p))
	}
	cmp, err := e.Compare(ctx, req)
	if err != nil {
		return nil, err
	}
	res := cmp.Result(p)
	out := &StatsResult{
		Period:     p,
		Benchmark:  cmp.Benchmark,
		Synthetic:  res.Synthetic,
		Estimated:  res.Estimated,
		Statistics: make(map[string]stats.Statistics, len(res.Keys)),
		Notices:    cmp.Notices,
	}
	for _, key := range res.Keys {
		out.Statistics[key] = stats.Aggregate(res.Series[key])
	}
	return out, nil
}

// Indices lists the catalogued indices.
func (e *Engine) Indices(ctx context.Context) ([]indexdata.Index, error) {
	return e.repo.Indices(ctx)
}

// IndexView returns the single-index view.
func (e *Engine) IndexView(ctx context.Context, name string) (*indexdata.IndexView, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: index name is required", ErrBadRequest)
	}
	return e.repo.IndexView(ctx, name, e.opts.Estimator)
}

// Ready reports whether the repository holds data.
func (e *Engine) Ready() bool {
	return e.repo.Ready()
}

// Refresh reloads the repository and reports data-quality issues. It is
// the scheduler's tick function.
func (e *Engine) Refresh(ctx context.Context, at time.Time) error {
	snap, err := e.repo.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reload index data: %w", err)
	}
	if snap.Quality.Clean() || !e.opts.Alerts || e.notifier == nil {
		return nil
	}

	issue := fingerprint(snap.Quality)
	if issue == e.lastIssue && e.opts.Cooldown > 0 && at.Sub(e.lastAlert) < e.opts.Cooldown {
		e.logger.Debug().Time("last_alert", e.lastAlert).Msg("data quality report suppressed by cooldown")
		return nil
	}

	note := notify.Notification{
		At:             at,
		Table:          e.opts.Table,
		Dates:          len(snap.Dates),
		Duplicates:     snap.Quality.DuplicateKeys,
		Unparseable:    snap.Quality.UnparseableKeys,
		MissingPeriods: snap.Quality.MissingPeriodNames(),
		LevelsMissing:  snap.Quality.LevelsMissing,
		Channels:       e.opts.Channels,
	}
	if err := e.notifier.Notify(ctx, note); err != nil {
		e.logger.Error().Err(err).Msg("failed to dispatch data quality report")
		return nil
	}
	e.lastAlert = at
	e.lastIssue = issue
	return nil
}

func (e *Engine) addResolutionNotices(cmp *comparison.Comparison, res resolver.Resolution) {
	if res.Swapped {
		cmp.AddNotice(comparison.NoticeRangeSwapped, "start date was after end date; the range was swapped")
	}
	if len(res.Dates) == 0 {
		return
	}
	first, last := res.Dates[0], res.Dates[len(res.Dates)-1]
	switch res.Mode {
	case resolver.ModeNearest:
		cmp.AddNotice(comparison.NoticeNearestDates, "no data in the requested range; showing nearest recorded dates %s to %s", first, last)
	case resolver.ModePadded:
		cmp.AddNotice(comparison.NoticePaddedDates, "too few dates in range; widened to %d dates from %s to %s", len(res.Dates), first, last)
	case resolver.ModeLatest:
		cmp.AddNotice(comparison.NoticeLatestDates, "showing the latest %d recorded dates", len(res.Dates))
	}
}

// splitIndices accepts both repeated values and comma-separated lists.
func splitIndices(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func fingerprint(q indexdata.Quality) string {
	return fmt.Sprintf("%d/%d/%d/%t", len(q.DuplicateKeys), len(q.UnparseableKeys), len(q.MissingPeriods), q.LevelsMissing)
}

// IsUnavailable reports whether err means the data is missing rather than
// the request being wrong.
func IsUnavailable(err error) bool {
	return errors.Is(err, table.ErrDataUnavailable) || errors.Is(err, indexdata.ErrNotReady)
}
