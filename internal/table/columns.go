package table

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"index-returns/internal/period"
)

var returnColumnPattern = regexp.MustCompile(`^\s*(.+?)\s*\(\s*(\d+)\s*[Yy][Rr]?\s*\)\s*$`)

// reserved names share the "(NYr)" suffix but are not indices.
var reservedNames = map[string]struct{}{
	"from": {},
	"to":   {},
}

// ParseReturnColumn splits "<index> (<N>Yr)" into its index name and period.
func ParseReturnColumn(column string) (string, period.Period, bool) {
	m := returnColumnPattern.FindStringSubmatch(column)
	if m == nil {
		return "", 0, false
	}
	years, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	p, ok := period.FromYears(years)
	if !ok {
		return "", 0, false
	}
	name := strings.TrimSpace(m[1])
	if _, reserved := reservedNames[strings.ToLower(name)]; reserved {
		return "", 0, false
	}
	return name, p, true
}

// ColumnMatcher decides whether a parsed column name refers to the requested index.
type ColumnMatcher struct {
	Name  string
	Match func(columnIndex, index string) bool
}

// DefaultMatchers are tried in order; the first strategy that matches any
// column wins.
var DefaultMatchers = []ColumnMatcher{
	{Name: "exact", Match: matchExact},
	{Name: "loose", Match: matchLoose},
	{Name: "underscore", Match: matchUnderscore},
}

func matchExact(columnIndex, index string) bool {
	return strings.TrimSpace(columnIndex) == strings.TrimSpace(index)
}

func matchLoose(columnIndex, index string) bool {
	return strings.EqualFold(collapseSpaces(columnIndex), collapseSpaces(index))
}

func matchUnderscore(columnIndex, index string) bool {
	return matchLoose(strings.ReplaceAll(columnIndex, "_", " "), strings.ReplaceAll(index, "_", " "))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ResolveColumn finds the returns column for an (index, period) pair.
func ResolveColumn(columns []string, index string, p period.Period) (string, bool) {
	return ResolveColumnWith(DefaultMatchers, columns, index, p)
}

// ResolveColumnWith is ResolveColumn with an explicit matcher list.
func ResolveColumnWith(matchers []ColumnMatcher, columns []string, index string, p period.Period) (string, bool) {
	type candidate struct {
		column string
		name   string
	}
	candidates := make([]candidate, 0, len(columns))
	for _, col := range columns {
		name, cp, ok := ParseReturnColumn(col)
		if !ok || cp != p {
			continue
		}
		candidates = append(candidates, candidate{column: col, name: name})
	}
	for _, m := range matchers {
		for _, c := range candidates {
			if m.Match(c.name, index) {
				return c.column, true
			}
		}
	}
	return "", false
}

// Catalog lists the indices discovered in a returns table with the periods
// each one has a column for.
type Catalog map[string][]period.Period

// BuildCatalog derives the index catalog from returns column names. Index
// names keep their first-seen spelling.
func BuildCatalog(columns []string) Catalog {
	cat := make(Catalog)
	for _, col := range columns {
		name, p, ok := ParseReturnColumn(col)
		if !ok {
			continue
		}
		cat[name] = append(cat[name], p)
	}
	for name := range cat {
		ps := cat[name]
		sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	}
	return cat
}

// Names returns the catalog's index names sorted alphabetically.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether an index has a column for the period.
func (c Catalog) Has(index string, p period.Period) bool {
	for _, cp := range c[index] {
		if cp == p {
			return true
		}
	}
	return false
}

// Missing lists the periods an index has no column for.
func (c Catalog) Missing(index string) []period.Period {
	var out []period.Period
	for _, p := range period.All {
		if !c.Has(index, p) {
			out = append(out, p)
		}
	}
	return out
}

// ResolveLevelColumn finds the plain "<index>" column of a levels table.
func ResolveLevelColumn(columns []string, index, keyColumn string) (string, bool) {
	for _, m := range DefaultMatchers {
		for _, col := range columns {
			if strings.TrimSpace(col) == strings.TrimSpace(keyColumn) {
				continue
			}
			if _, _, isReturn := ParseReturnColumn(col); isReturn {
				continue
			}
			if m.Match(col, index) {
				return col, true
			}
		}
	}
	return "", false
}
