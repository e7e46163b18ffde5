package table

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"index-returns/internal/period"
)

func TestParsePercent(t *testing.T) {
	cases := map[string]float64{
		"12.3%":     12.3,
		" -4.5 % ":  -4.5,
		"1,234.50%": 1234.5,
		"7":         7,
	}
	for in, want := range cases {
		got, err := ParsePercent(in)
		if err != nil {
			t.Fatalf("ParsePercent(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParsePercent(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParsePercent("n/a"); err == nil {
		t.Fatal("ParsePercent should reject non-numeric text")
	}
}

func TestRowPercentFallbacks(t *testing.T) {
	row := Row{"a": "12.5%", "blank": "  ", "junk": "abc", "num": 3.25, "nil": nil}

	if v := row.Percent("a", false); !v.Valid || v.Float64 != 12.5 {
		t.Fatalf("expected 12.5, got %+v", v)
	}
	if v := row.Percent("num", false); !v.Valid || v.Float64 != 3.25 {
		t.Fatalf("numeric cells pass through, got %+v", v)
	}
	if v := row.Percent("blank", false); v.Valid {
		t.Fatal("blank cell must be null")
	}
	if v := row.Percent("nil", false); v.Valid {
		t.Fatal("nil cell must be null")
	}
	if v := row.Percent("missing", false); v.Valid {
		t.Fatal("missing column must be null")
	}
	if v := row.Percent("junk", false); !v.Valid || v.Float64 != 0 {
		t.Fatalf("unparseable cell falls back to 0, got %+v", v)
	}
	if v := row.Percent("junk", true); v.Valid {
		t.Fatal("strict mode turns unparseable cells into null")
	}
}

func TestRowLevelStripsSeparators(t *testing.T) {
	row := Row{"Nifty 50": "21,456.75", "bad": "x"}
	if v := row.Level("Nifty 50"); !v.Valid || v.Float64 != 21456.75 {
		t.Fatalf("unexpected level %+v", v)
	}
	if v := row.Level("bad"); v.Valid {
		t.Fatal("unparseable level must be null")
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"03/05/2021", "3/5/2021", "2021-03-05", "2021-3-5", "2021-03-05 00:00:00"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %s, want %s", in, got, want)
		}
	}
	if FormatKey("Annualized Return") != "Annualized Return" {
		t.Fatal("unparseable keys pass through unchanged")
	}
	if FormatKey("03/05/2021") != "2021-03-05" {
		t.Fatal("parseable keys are rendered as ISO days")
	}
}

func TestScanDatesSortsAndDeduplicates(t *testing.T) {
	scan := ScanDates([]string{"01/03/2020", "Annualized Return", "01/01/2020", "2020-01-03", "01/02/2020"})
	if len(scan.Dates) != 3 {
		t.Fatalf("expected 3 unique dates, got %d", len(scan.Dates))
	}
	for i := 1; i < len(scan.Dates); i++ {
		if !scan.Dates[i-1].Day.Before(scan.Dates[i].Day) {
			t.Fatal("dates must be strictly ascending")
		}
	}
	if scan.Dates[2].Key != "01/03/2020" {
		t.Fatalf("first-seen key should win, got %q", scan.Dates[2].Key)
	}
	if len(scan.Duplicates) != 1 || len(scan.Unparseable) != 1 {
		t.Fatalf("unexpected scan report: %+v", scan)
	}
}

func TestParseReturnColumn(t *testing.T) {
	name, p, ok := ParseReturnColumn(" S&P 500 (5Yr)")
	if !ok || name != "S&P 500" || p != period.FiveYear {
		t.Fatalf("unexpected parse: %q %v %v", name, p, ok)
	}
	if _, _, ok := ParseReturnColumn("To (5Yr)"); ok {
		t.Fatal("To columns are not indices")
	}
	if _, _, ok := ParseReturnColumn("Nifty (2Yr)"); ok {
		t.Fatal("unsupported horizons must not parse")
	}
	if _, _, ok := ParseReturnColumn("Date"); ok {
		t.Fatal("plain columns must not parse")
	}
}

func TestMatchersAreIndependent(t *testing.T) {
	if !matchExact(" Nifty 50 ", "Nifty 50") {
		t.Fatal("exact matcher trims")
	}
	if matchExact("nifty 50", "Nifty 50") {
		t.Fatal("exact matcher is case sensitive")
	}
	if !matchLoose("nifty   50", "Nifty 50") {
		t.Fatal("loose matcher folds case and whitespace")
	}
	if matchLoose("Nifty_50", "Nifty 50") {
		t.Fatal("loose matcher does not substitute underscores")
	}
	if !matchUnderscore("Nifty_50", "nifty 50") {
		t.Fatal("underscore matcher substitutes underscores")
	}
}

func TestResolveColumnPriority(t *testing.T) {
	columns := []string{"From", "To (1Yr)", " nifty 50 (1Yr)", " Nifty 50 (1Yr)", " Nifty_Midcap (3Yr)"}

	col, ok := ResolveColumn(columns, "Nifty 50", period.OneYear)
	if !ok || col != " Nifty 50 (1Yr)" {
		t.Fatalf("exact match should win over loose, got %q", col)
	}
	col, ok = ResolveColumn(columns, "Nifty Midcap", period.ThreeYear)
	if !ok || col != " Nifty_Midcap (3Yr)" {
		t.Fatalf("underscore fallback failed, got %q", col)
	}
	if _, ok := ResolveColumn(columns, "Nifty 50", period.FiveYear); ok {
		t.Fatal("no 5Y column exists")
	}
}

func TestBuildCatalog(t *testing.T) {
	cat := BuildCatalog([]string{"From", "To (1Yr)", " A (3Yr)", " A (1Yr)", " B (1Yr)"})
	names := cat.Names()
	if strings.Join(names, ",") != "A,B" {
		t.Fatalf("unexpected names %v", names)
	}
	if !cat.Has("A", period.ThreeYear) || cat.Has("B", period.ThreeYear) {
		t.Fatal("catalog period membership is wrong")
	}
	if got := cat.Missing("B"); len(got) != 4 {
		t.Fatalf("B should miss 4 periods, got %v", got)
	}
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.Put("returns", []string{"From", " A (1Yr)"}, []Row{
		{"From": "Annualized Return", " A (1Yr)": ""},
		{"From": "01/02/2020", " A (1Yr)": ""},
		{"From": "01/01/2020", " A (1Yr)": "5%"},
		{"From": "01/03/2020", " A (1Yr)": "6%"},
	})

	if _, err := mem.ListColumns(ctx, "missing"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("missing table should be ErrDataUnavailable, got %v", err)
	}

	row, err := mem.GetRow(ctx, "returns", "From", "01/03/2020")
	if err != nil || row == nil {
		t.Fatalf("GetRow failed: %v", err)
	}
	row, _ = mem.GetRow(ctx, "returns", "From", "12/31/1999")
	if row != nil {
		t.Fatal("absent key must return nil row")
	}

	rows, err := mem.GetRowsByKeys(ctx, "returns", "From", []string{"01/01/2020", "01/03/2020", "nope"})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetRowsByKeys returned %d rows, err %v", len(rows), err)
	}

	latest, _ := mem.GetLatestRow(ctx, "returns", "From", "Annualized%")
	if latest.Key("From") != "01/03/2020" {
		t.Fatalf("unexpected latest row %v", latest)
	}

	key, ok, err := mem.MinKeyWhereNotNull(ctx, "returns", "From", " A (1Yr)")
	if err != nil || !ok || key != "01/01/2020" {
		t.Fatalf("inception lookup returned %q %v %v", key, ok, err)
	}
}

func TestReadCSV(t *testing.T) {
	in := "From, A (1Yr)\n01/01/2020,5.00%\n01/02/2020,\n"
	cols, rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(cols) != 2 || len(rows) != 2 {
		t.Fatalf("unexpected shape %v %d", cols, len(rows))
	}
	if v := rows[1].Percent(" A (1Yr)", false); v.Valid {
		t.Fatal("blank csv cell should read as null")
	}
}

func TestMatchLike(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"Annualized%", "Annualized Return", true},
		{"annualized%", " ANNUALIZED RETURN ", true},
		{"Annualized%", "01/02/2020", false},
		{"0_/02/2020", "01/02/2020", true},
		{"a.b%", "axb", false},
		{"", "anything", false},
	}
	for _, tc := range cases {
		if got := MatchLike(tc.pattern, tc.value); got != tc.want {
			t.Fatalf("MatchLike(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}

func TestResolveLevelColumn(t *testing.T) {
	columns := []string{"Date", "S&P 500", "msci_world", "MSCI World (1Yr)"}
	if col, ok := ResolveLevelColumn(columns, "s&p  500", "Date"); !ok || col != "S&P 500" {
		t.Fatalf("loose match failed: %q %v", col, ok)
	}
	if col, ok := ResolveLevelColumn(columns, "MSCI World", "Date"); !ok || col != "msci_world" {
		t.Fatalf("underscore match failed: %q %v", col, ok)
	}
	if _, ok := ResolveLevelColumn(columns, "Date", "Date"); ok {
		t.Fatal("key column is never a level column")
	}
}
