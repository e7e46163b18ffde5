package app

import (
	"context"
	"fmt"
	"time"

	"index-returns/internal/notify"
)

// Check loads the tables once, prints the data-quality report and, when
// alerting is enabled, sends it through the configured channels.
func (a *App) Check(ctx context.Context) error {
	st, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	if err := st.engine.Refresh(ctx, time.Now().UTC()); err != nil {
		return err
	}
	snap, err := st.repo.Snapshot()
	if err != nil {
		return err
	}

	q := snap.Quality
	if q.Clean() {
		fmt.Fprintf(a.Out, "%s: %d dates, no issues found\n", a.Config.Tables.Returns, len(snap.Dates))
		return nil
	}

	fmt.Fprintln(a.Out, notify.Render(notify.Notification{
		At:             snap.LoadedAt,
		Table:          a.Config.Tables.Returns,
		Dates:          len(snap.Dates),
		Duplicates:     q.DuplicateKeys,
		Unparseable:    q.UnparseableKeys,
		MissingPeriods: q.MissingPeriodNames(),
		LevelsMissing:  q.LevelsMissing,
	}))
	if !a.Config.Alerting.Enabled {
		a.Logger.Info().Msg("alerting disabled; report not sent")
	}
	return nil
}
