package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Row is one table row keyed by column name. Cell values are whatever the
// source produced: strings, numbers, times or nil.
type Row map[string]any

// Key returns the row's key cell rendered as text.
func (r Row) Key(keyColumn string) string {
	text, _ := r.Text(keyColumn)
	return text
}

// Text renders a cell as trimmed text. ok is false when the column is
// absent or the cell is nil.
func (r Row) Text(column string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	return strings.TrimSpace(CellText(v)), true
}

// CellText renders a single cell value as text.
func CellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(DateFormat)
	case decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Percent reads a percentage cell ("12.3%") as a number.
//
// Absent and blank cells are null. Non-blank cells that do not parse are 0,
// not null, unless strict is set: the source data uses this lossy fallback
// and downstream statistics cannot tell it apart from a real 0% return.
func (r Row) Percent(column string, strict bool) null.Float {
	if r == nil {
		return null.Float{}
	}
	v, ok := r[column]
	if !ok || v == nil {
		return null.Float{}
	}
	switch t := v.(type) {
	case float64:
		return null.FloatFrom(t)
	case float32:
		return null.FloatFrom(float64(t))
	case int:
		return null.FloatFrom(float64(t))
	case int32:
		return null.FloatFrom(float64(t))
	case int64:
		return null.FloatFrom(float64(t))
	case decimal.Decimal:
		return null.FloatFrom(t.InexactFloat64())
	}
	text := strings.TrimSpace(CellText(v))
	if text == "" {
		return null.Float{}
	}
	f, err := ParsePercent(text)
	if err != nil {
		if strict {
			return null.Float{}
		}
		return null.FloatFrom(0)
	}
	return null.FloatFrom(f)
}

// ParsePercent parses "12.3%", " -4 % " or "1,234.5%" into a float.
func ParsePercent(s string) (float64, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
	v = strings.ReplaceAll(v, ",", "")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("parse percent %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

// Level reads an index level cell, tolerating thousands separators. Blank
// and unparseable cells are null.
func (r Row) Level(column string) null.Float {
	text, ok := r.Text(column)
	if !ok || text == "" {
		return null.Float{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(d.InexactFloat64())
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
