// Package rolling derives the annualized returns table from daily index
// levels.
package rolling

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"index-returns/internal/table"
)

const (
	// FromColumn keys the returns table.
	FromColumn = "From"
	// HeaderLabel fills the first cell of the leading header row.
	HeaderLabel = "Annualized Return"

	daysPerYear = 365.25
	// minCoverage is the share of the requested horizon a span must cover.
	minCoverage = 0.5
)

// DefaultPeriods are the horizons, in years, the loader computes.
var DefaultPeriods = []int{1, 3, 5, 7, 10}

// Levels is a chronologically sorted level history for several indices.
type Levels struct {
	Indices []string
	Dates   []time.Time
	Values  map[string][]null.Float
}

// Table is a computed returns table ready to be stored.
type Table struct {
	Columns []string
	Records [][]string
}

// WriteCSV writes the table, header row included, as CSV.
func WriteCSV(w io.Writer, t Table) error {
	return table.WriteCSV(w, t.Columns, t.Records)
}

// FromRows builds Levels from raw rows. Rows whose key is not a date are
// skipped and returned; duplicate dates keep the first row.
func FromRows(rows []table.Row, keyColumn string, columns []string) (Levels, []string) {
	type dated struct {
		day time.Time
		row table.Row
	}
	var (
		skipped []string
		ordered []dated
		seen    = make(map[time.Time]struct{}, len(rows))
	)
	for _, row := range rows {
		key := row.Key(keyColumn)
		day, err := table.ParseDate(key)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		ordered = append(ordered, dated{day: day, row: row})
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].day.Before(ordered[j].day) })

	lv := Levels{Values: make(map[string][]null.Float)}
	for _, col := range columns {
		if col == keyColumn {
			continue
		}
		lv.Indices = append(lv.Indices, col)
	}
	lv.Dates = make([]time.Time, len(ordered))
	for i, d := range ordered {
		lv.Dates[i] = d.day
	}
	for _, index := range lv.Indices {
		values := make([]null.Float, len(ordered))
		for i, d := range ordered {
			values[i] = d.row.Level(index)
		}
		lv.Values[index] = values
	}
	return lv, skipped
}

// Compute produces the returns table: a From column, then per period a
// "To (NYr)" column and one " <index> (NYr)" column per index. Rows are
// aligned by start date and preceded by a header row.
func Compute(lv Levels, periods []int) Table {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}

	targets := make([][]int, len(periods))
	rowCount := 0
	for k, years := range periods {
		targets[k] = endIndices(lv.Dates, years)
		if n := validPrefix(targets[k]); n > rowCount {
			rowCount = n
		}
	}

	columns := []string{FromColumn}
	for _, years := range periods {
		columns = append(columns, fmt.Sprintf("To (%dYr)", years))
		for _, index := range lv.Indices {
			columns = append(columns, fmt.Sprintf(" %s (%dYr)", index, years))
		}
	}

	records := make([][]string, 0, rowCount+1)
	header := make([]string, len(columns))
	header[0] = HeaderLabel
	records = append(records, header)

	for i := 0; i < rowCount; i++ {
		rec := make([]string, 0, len(columns))
		rec = append(rec, lv.Dates[i].Format(table.SourceDateFormat))
		for k, years := range periods {
			end := targets[k][i]
			if end < 0 {
				rec = append(rec, "")
				for range lv.Indices {
					rec = append(rec, "")
				}
				continue
			}
			rec = append(rec, lv.Dates[end].Format(table.SourceDateFormat))
			for _, index := range lv.Indices {
				values := lv.Values[index]
				rec = append(rec, formatReturn(Annualized(values[i], values[end], lv.Dates[i], lv.Dates[end], years)))
			}
		}
		records = append(records, rec)
	}
	return Table{Columns: columns, Records: records}
}

// Annualized is the compound annual growth rate, in percent, between two
// levels. It is null when a level is missing, the start is zero, or the span
// covers less than half of the requested years.
func Annualized(start, end null.Float, from, to time.Time, years int) null.Float {
	if !start.Valid || !end.Valid || start.Float64 == 0 {
		return null.Float{}
	}
	days := int(to.Sub(from).Hours() / 24)
	if days <= 0 {
		return null.Float{}
	}
	actualYears := float64(days) / daysPerYear
	if actualYears < float64(years)*minCoverage {
		return null.Float{}
	}
	growth := decimal.NewFromFloat(end.Float64).Div(decimal.NewFromFloat(start.Float64)).InexactFloat64()
	return null.FloatFrom((math.Pow(growth, 1/actualYears) - 1) * 100)
}

// endIndices finds, for every start date, the exact date N years later or
// the latest date before it. -1 marks targets past the last recorded date.
func endIndices(dates []time.Time, years int) []int {
	out := make([]int, len(dates))
	if len(dates) == 0 {
		return out
	}
	last := dates[len(dates)-1]
	for i, d := range dates {
		target := addYears(d, years)
		if target.After(last) {
			out[i] = -1
			continue
		}
		// first index after target, searching from i onward
		j := i + sort.Search(len(dates)-i, func(k int) bool { return dates[i+k].After(target) })
		out[i] = j - 1
	}
	return out
}

// addYears clamps Feb 29 to Feb 28 in non-leap years instead of rolling
// into March.
func addYears(t time.Time, years int) time.Time {
	out := t.AddDate(years, 0, 0)
	if out.Month() != t.Month() {
		out = out.AddDate(0, 0, -out.Day())
	}
	return out
}

func validPrefix(ends []int) int {
	for i, e := range ends {
		if e < 0 {
			return i
		}
	}
	return len(ends)
}

func formatReturn(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return fmt.Sprintf("%.2f%%", v.Float64)
}
