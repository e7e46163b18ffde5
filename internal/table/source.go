// Package table is the read-only projection layer the engine uses to reach
// tabular index data: column discovery, keyed row lookup and a few
// aggregate helpers. Concrete sources live here (in-memory, CSV) and in
// the storage package (PostgreSQL).
package table

import (
	"context"
	"errors"
)

// ErrDataUnavailable indicates the backing table has no rows for a required lookup.
var ErrDataUnavailable = errors.New("table: data unavailable")

// Source exposes the read operations the engine consumes. Implementations
// must never mutate the underlying table.
type Source interface {
	ListColumns(ctx context.Context, table string) ([]string, error)
	ListKeys(ctx context.Context, table, keyColumn string) ([]string, error)
	GetRow(ctx context.Context, table, keyColumn, key string) (Row, error)
	GetRowsByKeys(ctx context.Context, table, keyColumn string, keys []string) ([]Row, error)
	GetLatestRow(ctx context.Context, table, keyColumn, excludePattern string) (Row, error)
	MinKeyWhereNotNull(ctx context.Context, table, keyColumn, column string) (string, bool, error)
}
