package table

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Source backed by loaded rows. Rows keep their
// load order, which GetLatestRow treats as recency.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	columns []string
	rows    []Row
}

// NewMemory returns an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

// Put replaces a table. Rows are cloned so later caller edits do not leak in.
func (m *Memory) Put(table string, columns []string, rows []Row) {
	cols := append([]string(nil), columns...)
	copied := make([]Row, len(rows))
	for i, r := range rows {
		copied[i] = r.Clone()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = &memTable{columns: cols, rows: copied}
}

func (m *Memory) lookup(table string) (*memTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, ErrDataUnavailable)
	}
	return t, nil
}

// ListColumns returns the table's columns in load order.
func (m *Memory) ListColumns(ctx context.Context, table string) ([]string, error) {
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), t.columns...), nil
}

// ListKeys returns every key in load order.
func (m *Memory) ListKeys(ctx context.Context, table, keyColumn string) ([]string, error) {
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(t.rows))
	for _, r := range t.rows {
		if key, ok := r.Text(keyColumn); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// GetRow returns the first row whose key equals key, or nil.
func (m *Memory) GetRow(ctx context.Context, table, keyColumn, key string) (Row, error) {
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(key)
	for _, r := range t.rows {
		if r.Key(keyColumn) == want {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

// GetRowsByKeys returns the rows whose key is in keys, in load order.
func (m *Memory) GetRowsByKeys(ctx context.Context, table, keyColumn string, keys []string) ([]Row, error) {
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[strings.TrimSpace(k)] = struct{}{}
	}
	out := make([]Row, 0, len(keys))
	for _, r := range t.rows {
		if _, ok := wanted[r.Key(keyColumn)]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// GetLatestRow returns the last loaded row whose key does not match the
// SQL LIKE excludePattern.
func (m *Memory) GetLatestRow(ctx context.Context, table, keyColumn, excludePattern string) (Row, error) {
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}
	var exclude *regexp.Regexp
	if excludePattern != "" {
		exclude = likeToRegexp(excludePattern)
	}
	for i := len(t.rows) - 1; i >= 0; i-- {
		key := t.rows[i].Key(keyColumn)
		if exclude != nil && exclude.MatchString(key) {
			continue
		}
		return t.rows[i].Clone(), nil
	}
	return nil, nil
}

// MinKeyWhereNotNull returns the chronologically earliest key whose cell in
// column is non-blank.
func (m *Memory) MinKeyWhereNotNull(ctx context.Context, table, keyColumn, column string) (string, bool, error) {
	t, err := m.lookup(table)
	if err != nil {
		return "", false, err
	}
	keys := make([]string, 0)
	for _, r := range t.rows {
		if text, ok := r.Text(column); ok && text != "" {
			keys = append(keys, r.Key(keyColumn))
		}
	}
	key, ok := EarliestKey(keys)
	return key, ok, nil
}

// EarliestKey picks the chronologically earliest parseable key.
func EarliestKey(keys []string) (string, bool) {
	var (
		best    string
		bestDay time.Time
		found   bool
	)
	for _, k := range keys {
		day, err := ParseDate(k)
		if err != nil {
			continue
		}
		if !found || day.Before(bestDay) {
			best, bestDay, found = k, day, true
		}
	}
	return best, found
}

func likeToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

var _ Source = (*Memory)(nil)

// MatchLike reports whether s matches the SQL LIKE pattern, ignoring case.
func MatchLike(pattern, s string) bool {
	if pattern == "" {
		return false
	}
	return likeToRegexp(pattern).MatchString(strings.TrimSpace(s))
}
