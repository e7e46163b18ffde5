package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"index-returns/internal/table"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listColumnsSQL = `SELECT column_name
    FROM information_schema.columns
    WHERE table_schema = current_schema()
      AND table_name = $1
    ORDER BY ordinal_position;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`

	// Identifiers are sanitized before being spliced into these templates.
	listKeysSQL   = `SELECT btrim(%[2]s::text) FROM %[1]s WHERE %[2]s IS NOT NULL;`
	selectRowsSQL = `SELECT %[3]s FROM %[1]s WHERE btrim(%[2]s::text) = ANY($1) ORDER BY ctid;`
	selectRowSQL  = `SELECT %[3]s FROM %[1]s WHERE btrim(%[2]s::text) = $1 ORDER BY ctid LIMIT 1;`
	latestRowSQL  = `SELECT %[3]s FROM %[1]s WHERE %[2]s IS NOT NULL %[4]s ORDER BY ctid DESC LIMIT 1;`
	nonNullKeySQL = `SELECT btrim(%[2]s::text) FROM %[1]s
    WHERE %[3]s IS NOT NULL AND btrim(%[3]s::text) <> '';`
	excludeKeyClause = `AND %s::text NOT ILIKE $1`

	dropTableSQL   = `DROP TABLE IF EXISTS %s;`
	createTableSQL = `CREATE TABLE %s (%s);`
)

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListColumns returns the table's columns in ordinal order.
func (s *Store) ListColumns(ctx context.Context, name string) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listColumnsSQL, name)
	if queryErr != nil {
		return nil, fmt.Errorf("list columns: %w", queryErr)
	}
	columns, collectErr := pgx.CollectRows(rows, pgx.RowTo[string])
	if collectErr != nil {
		return nil, fmt.Errorf("list columns: %w", collectErr)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: %w", name, table.ErrDataUnavailable)
	}
	return columns, nil
}

// ListKeys returns every non-null key of the table.
func (s *Store) ListKeys(ctx context.Context, name, keyColumn string) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(listKeysSQL, ident(name), ident(keyColumn))
	rows, queryErr := pool.Query(ctx, query)
	if queryErr != nil {
		return nil, fmt.Errorf("list keys: %w", queryErr)
	}
	keys, collectErr := pgx.CollectRows(rows, pgx.RowTo[string])
	if collectErr != nil {
		return nil, fmt.Errorf("list keys: %w", collectErr)
	}
	return keys, nil
}

// GetRow returns the first row stored under key, or nil.
func (s *Store) GetRow(ctx context.Context, name, keyColumn, key string) (table.Row, error) {
	selectList, err := s.selectList(ctx, name)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(selectRowSQL, ident(name), ident(keyColumn), selectList)
	rows, err := s.queryRows(ctx, "get row", query, strings.TrimSpace(key))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// GetRowsByKeys returns the rows whose key is in keys, in storage order.
func (s *Store) GetRowsByKeys(ctx context.Context, name, keyColumn string, keys []string) ([]table.Row, error) {
	if len(keys) == 0 {
		return []table.Row{}, nil
	}
	selectList, err := s.selectList(ctx, name)
	if err != nil {
		return nil, err
	}
	trimmed := make([]string, len(keys))
	for i, k := range keys {
		trimmed[i] = strings.TrimSpace(k)
	}
	query := fmt.Sprintf(selectRowsSQL, ident(name), ident(keyColumn), selectList)
	return s.queryRows(ctx, "get rows by keys", query, trimmed)
}

// GetLatestRow returns the most recently loaded row whose key does not
// match the ILIKE excludePattern. Load order is physical order, which holds
// for tables written in one bulk copy.
func (s *Store) GetLatestRow(ctx context.Context, name, keyColumn, excludePattern string) (table.Row, error) {
	selectList, err := s.selectList(ctx, name)
	if err != nil {
		return nil, err
	}
	var (
		clause string
		args   []any
	)
	if excludePattern != "" {
		clause = fmt.Sprintf(excludeKeyClause, ident(keyColumn))
		args = append(args, excludePattern)
	}
	query := fmt.Sprintf(latestRowSQL, ident(name), ident(keyColumn), selectList, clause)
	rows, err := s.queryRows(ctx, "get latest row", query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// MinKeyWhereNotNull returns the chronologically earliest key whose cell in
// column is non-blank. Keys are text, so the comparison happens on parsed
// dates rather than in SQL.
func (s *Store) MinKeyWhereNotNull(ctx context.Context, name, keyColumn, column string) (string, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", false, err
	}

	query := fmt.Sprintf(nonNullKeySQL, ident(name), ident(keyColumn), ident(column))
	rows, queryErr := pool.Query(ctx, query)
	if queryErr != nil {
		return "", false, fmt.Errorf("min key where not null: %w", queryErr)
	}
	keys, collectErr := pgx.CollectRows(rows, pgx.RowTo[string])
	if collectErr != nil {
		return "", false, fmt.Errorf("min key where not null: %w", collectErr)
	}
	key, ok := table.EarliestKey(keys)
	return key, ok, nil
}

// ReplaceTable drops and recreates name with text columns and bulk-copies
// records into it, all in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, name string, columns []string, records [][]string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("replace table %s: no columns", name)
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = ident(col) + " text"
	}
	data := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j := range columns {
			if j < len(rec) && rec[j] != "" {
				row[j] = rec[j]
			}
		}
		data[i] = row
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace table: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(dropTableSQL, ident(name))); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(createTableSQL, ident(name), strings.Join(defs, ", "))); err != nil {
		return 0, fmt.Errorf("create table %s: %w", name, err)
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{name}, columns, pgx.CopyFromRows(data))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace table: %w", err)
	}
	return copied, nil
}

func (s *Store) selectList(ctx context.Context, name string) (string, error) {
	columns, err := s.ListColumns(ctx, name)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		quoted := ident(col)
		parts[i] = quoted + "::text AS " + quoted
	}
	return strings.Join(parts, ", "), nil
}

func (s *Store) queryRows(ctx context.Context, op, query string, args ...any) ([]table.Row, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("%s: %w", op, queryErr)
	}
	maps, collectErr := pgx.CollectRows(rows, pgx.RowToMap)
	if collectErr != nil {
		return nil, fmt.Errorf("%s: %w", op, collectErr)
	}
	out := make([]table.Row, len(maps))
	for i, m := range maps {
		out[i] = table.Row(m)
	}
	return out, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

var (
	_ table.Source   = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
