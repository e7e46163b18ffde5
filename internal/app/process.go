package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"index-returns/internal/rolling"
)

// ErrLocked is returned when another loader holds the advisory lock.
var ErrLocked = errors.New("returns table is being rebuilt by another process")

// Process rebuilds the annualized returns table from the levels table.
// With a CSV path the table is written to file instead of the database.
func (a *App) Process(ctx context.Context, opts ProcessOptions) error {
	periods := opts.Periods
	if len(periods) == 0 {
		periods = a.Config.Process.Periods
	}

	st, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	tables := a.Config.Tables
	if opts.CSVPath == "" && !opts.DryRun && st.store != nil {
		unlock, acquired, err := st.store.TryAdvisoryLock(ctx, a.Config.Process.AdvisoryLockKey)
		if err != nil {
			return err
		}
		if !acquired {
			return ErrLocked
		}
		defer unlock()
	}

	columns, err := st.source.ListColumns(ctx, tables.Levels)
	if err != nil {
		return fmt.Errorf("read levels columns: %w", err)
	}
	keys, err := st.source.ListKeys(ctx, tables.Levels, tables.LevelsKey)
	if err != nil {
		return fmt.Errorf("read levels keys: %w", err)
	}
	rows, err := st.source.GetRowsByKeys(ctx, tables.Levels, tables.LevelsKey, keys)
	if err != nil {
		return fmt.Errorf("read levels rows: %w", err)
	}

	levels, skipped := rolling.FromRows(rows, tables.LevelsKey, columns)
	if len(skipped) > 0 {
		a.Logger.Warn().Int("count", len(skipped)).Strs("keys", head(skipped, 5)).Msg("skipped level rows with unparseable dates")
	}
	out := rolling.Compute(levels, periods)
	if label := a.Config.Process.HeaderLabel; label != "" && len(out.Records) > 0 {
		out.Records[0][0] = label
	}

	a.Logger.Info().
		Int("indices", len(levels.Indices)).
		Int("levels", len(levels.Dates)).
		Int("rows", len(out.Records)-1).
		Ints("periods", periods).
		Msg("returns table computed")

	switch {
	case opts.DryRun:
		a.Logger.Warn().Msg("dry run: returns table not written")
		return nil
	case opts.CSVPath != "":
		if err := ensureDir(opts.CSVPath); err != nil {
			return err
		}
		file, err := os.Create(opts.CSVPath)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := rolling.WriteCSV(file, out); err != nil {
			return fmt.Errorf("write returns csv: %w", err)
		}
		a.Logger.Info().Str("path", opts.CSVPath).Msg("returns table written")
		return nil
	case st.store == nil:
		return errors.New("writing the returns table needs the postgres source; use --csv")
	}

	n, err := st.store.ReplaceTable(ctx, tables.Returns, out.Columns, out.Records)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("table", tables.Returns).Int64("rows", n).Msg("returns table replaced")
	return nil
}

func head(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
