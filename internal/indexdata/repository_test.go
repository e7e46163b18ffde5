package indexdata

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"index-returns/internal/period"
	"index-returns/internal/table"
)

var returnColumns = []string{
	"From",
	"To (1Yr)", " SP500 (1Yr)", " NASDAQ (1Yr)",
	"To (3Yr)", " SP500 (3Yr)", " NASDAQ (3Yr)",
	"To (5Yr)", " SP500 (5Yr)",
}

func fixtureSource() *table.Memory {
	mem := table.NewMemory()
	mem.Put("returns", returnColumns, []table.Row{
		{"From": "Annualized Return"},
		{"From": "01/03/2020", " SP500 (1Yr)": "12.00%", " NASDAQ (1Yr)": "20.00%", " SP500 (3Yr)": "9.00%", " NASDAQ (3Yr)": "", " SP500 (5Yr)": "7.00%"},
		{"From": "01/02/2020", " SP500 (1Yr)": "10.00%", " NASDAQ (1Yr)": "", " SP500 (3Yr)": "8.00%", " NASDAQ (3Yr)": "", " SP500 (5Yr)": "6.00%"},
		{"From": "01/02/2020", " SP500 (1Yr)": "99.00%"},
		{"From": "not a date"},
		{"From": "01/06/2020", " SP500 (1Yr)": "-4.00%", " NASDAQ (1Yr)": "15.00%", " SP500 (3Yr)": "", " NASDAQ (3Yr)": "10.00%", " SP500 (5Yr)": ""},
	})
	mem.Put("levels", []string{"Date", "SP500", "NASDAQ"}, []table.Row{
		{"Date": "01/06/2020", "SP500": "3,246.28", "NASDAQ": "9,071.47"},
		{"Date": "01/02/2020", "SP500": "3,257.85", "NASDAQ": ""},
		{"Date": "01/03/2020", "SP500": "3,234.85", "NASDAQ": "9,020.77"},
	})
	return mem
}

func testOptions() Options {
	return Options{
		ReturnsTable:  "returns",
		ReturnsKey:    "From",
		LevelsTable:   "levels",
		LevelsKey:     "Date",
		HeaderPattern: "Annualized%",
		FanOutLimit:   2,
		RiskFreeRate:  4.25,
	}
}

func newRepository(t *testing.T, source table.Source) *Repository {
	t.Helper()
	repo := New(source, testOptions(), zerolog.Nop())
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return repo
}

func TestRepositoryNotReady(t *testing.T) {
	repo := New(table.NewMemory(), testOptions(), zerolog.Nop())
	if repo.Ready() {
		t.Fatal("repository must not be ready before Init")
	}
	if _, err := repo.Snapshot(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := repo.Init(context.Background()); !errors.Is(err, table.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable for missing table, got %v", err)
	}
	if repo.Ready() {
		t.Fatal("failed Init must leave the repository not ready")
	}
}

func TestRepositorySnapshot(t *testing.T) {
	repo := newRepository(t, fixtureSource())
	snap, err := repo.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Dates) != 3 {
		t.Fatalf("expected 3 unique dates, got %v", snap.Dates)
	}
	if snap.Dates[0].Key != "01/02/2020" || snap.Dates[2].Key != "01/06/2020" {
		t.Fatalf("dates not chronological: %v", snap.Dates)
	}
	q := snap.Quality
	if len(q.DuplicateKeys) != 1 || len(q.UnparseableKeys) != 1 || q.UnparseableKeys[0] != "not a date" {
		t.Fatalf("unexpected quality report %+v", q)
	}
	missing := q.MissingPeriods["NASDAQ"]
	if len(missing) != 3 || missing[0] != period.FiveYear {
		t.Fatalf("NASDAQ should miss 5Y/7Y/10Y, got %v", missing)
	}
	if q.Clean() {
		t.Fatal("report with problems must not be clean")
	}
}

func TestReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	mem := fixtureSource()
	repo := newRepository(t, mem)
	before, _ := repo.Snapshot()

	mem.Put("returns", returnColumns, []table.Row{{"From": "Annualized Return"}})
	if _, err := repo.Reload(context.Background()); !errors.Is(err, table.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	after, _ := repo.Snapshot()
	if after != before {
		t.Fatal("failed reload must keep the previous snapshot")
	}
}

func TestIndicesWithInception(t *testing.T) {
	repo := newRepository(t, fixtureSource())
	indices, err := repo.Indices(context.Background())
	if err != nil {
		t.Fatalf("Indices failed: %v", err)
	}
	if len(indices) != 2 || indices[0].Name != "NASDAQ" || indices[1].Name != "SP500" {
		t.Fatalf("unexpected indices %+v", indices)
	}
	if indices[0].Inception == nil || indices[0].Inception.String() != "2020-01-03" {
		t.Fatalf("NASDAQ inception should come from levels, got %v", indices[0].Inception)
	}
	if indices[1].Inception == nil || indices[1].Inception.String() != "2020-01-02" {
		t.Fatalf("unexpected SP500 inception %v", indices[1].Inception)
	}
	if len(indices[1].Periods) != 3 {
		t.Fatalf("SP500 periods = %v", indices[1].Periods)
	}
}

func TestIndexView(t *testing.T) {
	repo := newRepository(t, fixtureSource())
	view, err := repo.IndexView(context.Background(), "nasdaq", nil)
	if err != nil {
		t.Fatalf("IndexView failed: %v", err)
	}
	if view.Name != "NASDAQ" {
		t.Fatalf("name should be canonicalised, got %q", view.Name)
	}
	if view.AsOf == nil || view.AsOf.Key != "01/06/2020" {
		t.Fatalf("latest row should be the last loaded one, got %v", view.AsOf)
	}
	if len(view.History) != 2 || view.History[0].Date.Key != "01/03/2020" || view.History[1].Level.Float64 != 9071.47 {
		t.Fatalf("unexpected history %+v", view.History)
	}

	byPeriod := make(map[period.Period]PeriodSummary)
	for _, ps := range view.Periods {
		byPeriod[ps.Period] = ps
	}
	one := byPeriod[period.OneYear]
	if !one.Return.Valid || one.Return.Float64 != 15 || one.Estimated {
		t.Fatalf("unexpected 1Y summary %+v", one)
	}
	if math.Abs(one.Sharpe.Float64-(15-4.25)/(15*0.6)) > 1e-9 {
		t.Fatalf("unexpected sharpe %v", one.Sharpe)
	}
	if one.Statistics.Count != 2 || one.Statistics.Median != 17.5 {
		t.Fatalf("unexpected 1Y statistics %+v", one.Statistics)
	}
	five := byPeriod[period.FiveYear]
	if !five.Estimated || math.Abs(five.Return.Float64-11) > 1e-9 {
		t.Fatalf("5Y should be estimated from 3Y 10%%, got %+v", five)
	}
	if five.Statistics.Count != 0 {
		t.Fatal("missing column must give zero statistics")
	}
}

func TestIndexViewUnknownIndex(t *testing.T) {
	repo := newRepository(t, fixtureSource())
	if _, err := repo.IndexView(context.Background(), "DOW", nil); !errors.Is(err, ErrUnknownIndex) {
		t.Fatalf("expected ErrUnknownIndex, got %v", err)
	}
}

func TestIndexViewWithoutLevels(t *testing.T) {
	mem := fixtureSource()
	mem.Put("levels", []string{"Date"}, nil)
	repo := newRepository(t, mem)
	view, err := repo.IndexView(context.Background(), "SP500", nil)
	if err != nil {
		t.Fatalf("IndexView failed: %v", err)
	}
	if view.History == nil || len(view.History) != 0 {
		t.Fatalf("history should degrade to empty, got %v", view.History)
	}
	if view.Inception == nil || view.Inception.Key != "01/02/2020" {
		t.Fatalf("inception should fall back to returns, got %v", view.Inception)
	}
}

var errReadFailed = errors.New("read failed")

// flakySource fails the lookups used by the inception and latest-row reads.
type flakySource struct {
	*table.Memory
}

func (f flakySource) GetLatestRow(ctx context.Context, name, keyColumn, excludePattern string) (table.Row, error) {
	return nil, errReadFailed
}

func (f flakySource) MinKeyWhereNotNull(ctx context.Context, name, keyColumn, column string) (string, bool, error) {
	return "", false, errReadFailed
}

func TestIndicesDegradeOnFailedReads(t *testing.T) {
	repo := newRepository(t, flakySource{fixtureSource()})
	indices, err := repo.Indices(context.Background())
	if err != nil {
		t.Fatalf("failed inception reads must not abort the batch: %v", err)
	}
	if len(indices) != 2 {
		t.Fatalf("expected both indices, got %+v", indices)
	}
	for _, idx := range indices {
		if idx.Inception != nil {
			t.Fatalf("%s: inception should be absent, got %v", idx.Name, idx.Inception)
		}
		if len(idx.Periods) == 0 {
			t.Fatalf("%s: periods should still be listed", idx.Name)
		}
	}
}

func TestIndexViewDegradesOnFailedReads(t *testing.T) {
	repo := newRepository(t, flakySource{fixtureSource()})
	view, err := repo.IndexView(context.Background(), "SP500", nil)
	if err != nil {
		t.Fatalf("failed reads must not abort the view: %v", err)
	}
	if view.Inception != nil || view.AsOf != nil {
		t.Fatalf("inception and as-of should be absent, got %v / %v", view.Inception, view.AsOf)
	}
	if len(view.History) != 3 {
		t.Fatalf("history should be unaffected, got %d points", len(view.History))
	}
	for _, ps := range view.Periods {
		if ps.Return.Valid || ps.Sharpe.Valid || ps.Estimated {
			t.Fatalf("%s: latest return should degrade to null, got %+v", ps.Period, ps)
		}
	}
	if view.Periods[0].Statistics.Count == 0 {
		t.Fatal("statistics should be unaffected by the failed reads")
	}
}
