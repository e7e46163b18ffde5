package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"index-returns/internal/config"
	"index-returns/internal/period"
	"index-returns/internal/table"
)

const levelsCSV = `Date,SP500
01/01/2016,"1,000.00"
01/01/2017,"1,100.00"
01/01/2018,"1,210.00"
01/01/2019,"1,331.00"
01/01/2020,"1,464.10"
`

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	levels := filepath.Join(dir, "levels.csv")
	if err := os.WriteFile(levels, []byte(levelsCSV), 0o644); err != nil {
		t.Fatalf("write levels: %v", err)
	}

	cfg := &config.Config{
		Tables: config.TablesConfig{
			Source:        config.SourceCSV,
			Returns:       "returns",
			ReturnsKey:    "From",
			Levels:        "levels",
			LevelsKey:     "Date",
			HeaderPattern: "Annualized%",
			LevelsCSV:     levels,
		},
		Engine: config.EngineConfig{
			MinPoints:      10,
			FallbackWindow: 50,
			FanOutLimit:    2,
			SyntheticSeed:  1,
			RiskFreeRate:   4.25,
		},
		Export:  config.ExportConfig{Dir: dir, ChartWidth: 640, ChartHeight: 480},
		Process: config.ProcessConfig{Periods: []int{1}, HeaderLabel: "Annualized Return"},
	}
	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	return a, out
}

// processReturns runs the loader into a CSV and points the app at it.
func processReturns(t *testing.T, a *App) string {
	t.Helper()
	path := filepath.Join(a.Config.Export.Dir, "returns.csv")
	if err := a.Process(context.Background(), ProcessOptions{CSVPath: path}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	a.Config.Tables.ReturnsCSV = path
	return path
}

func TestProcessWritesReturnsCSV(t *testing.T) {
	a, _ := newTestApp(t)
	path := processReturns(t, a)

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()
	columns, rows, err := table.ReadCSV(file)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := []string{"From", "To (1Yr)", " SP500 (1Yr)"}
	if strings.Join(columns, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected columns %q", columns)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	if key := rows[0].Key("From"); key != "Annualized Return" {
		t.Fatalf("unexpected header row %q", key)
	}
	for _, row := range rows[1:] {
		text, _ := row.Text(" SP500 (1Yr)")
		v, err := strconv.ParseFloat(strings.TrimSuffix(text, "%"), 64)
		if err != nil || v < 9.9 || v > 10.1 {
			t.Fatalf("unexpected return %q for %s", text, row.Key("From"))
		}
	}
}

func TestProcessDryRunWritesNothing(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.Process(context.Background(), ProcessOptions{DryRun: true}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if err := a.Process(context.Background(), ProcessOptions{}); err == nil {
		t.Fatal("writing without postgres or --csv should fail")
	}
}

func TestCompareJSON(t *testing.T) {
	a, out := newTestApp(t)
	processReturns(t, a)

	err := a.Compare(context.Background(), CompareOptions{QueryOptions: QueryOptions{Indices: []string{"SP500"}, JSON: true}})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	var cmp struct {
		Benchmark string `json:"benchmark"`
		Results   []struct {
			Period    string                `json:"period"`
			Dates     []string              `json:"dates"`
			Series    map[string][]*float64 `json:"series"`
			Synthetic bool                  `json:"synthetic"`
		} `json:"results"`
	}
	if err := json.Unmarshal(out.Bytes(), &cmp); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if cmp.Benchmark != "SP500" || len(cmp.Results) != len(period.All) {
		t.Fatalf("unexpected comparison %+v", cmp)
	}
	oneYear := cmp.Results[0]
	if oneYear.Period != "1Y" || len(oneYear.Dates) != 4 || oneYear.Synthetic {
		t.Fatalf("unexpected 1Y result %+v", oneYear)
	}
	if oneYear.Dates[0] != "2016-01-01" {
		t.Fatalf("dates should be chronological, got %v", oneYear.Dates)
	}
}

func TestCompareTables(t *testing.T) {
	a, out := newTestApp(t)
	processReturns(t, a)

	err := a.Compare(context.Background(), CompareOptions{
		QueryOptions: QueryOptions{Indices: []string{"SP500"}},
		Periods:      []period.Period{period.OneYear},
	})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "== 1Y ==") || strings.Contains(text, "== 3Y ==") {
		t.Fatalf("only the 1Y table should be printed:\n%s", text)
	}
	if !strings.Contains(text, "2019-01-01") {
		t.Fatalf("missing latest date:\n%s", text)
	}
}

func TestExportWritesFiles(t *testing.T) {
	a, _ := newTestApp(t)
	processReturns(t, a)

	err := a.Export(context.Background(), ExportOptions{
		QueryOptions: QueryOptions{Indices: []string{"SP500"}},
		Period:       period.OneYear,
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	for _, name := range []string{"compare-1Y.csv", "compare-1Y.png"} {
		info, err := os.Stat(filepath.Join(a.Config.Export.Dir, name))
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}
}

func TestCheckReportsMissingPeriods(t *testing.T) {
	a, out := newTestApp(t)
	processReturns(t, a)

	if err := a.Check(context.Background()); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !strings.Contains(out.String(), "Missing columns: SP500 3Y/5Y/7Y/10Y") {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
}

func TestLoadWithoutReturns(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.Indices(context.Background(), false); err == nil {
		t.Fatal("indices without a returns table should fail")
	}
}
