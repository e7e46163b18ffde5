package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"index-returns/internal/httpapi"
	"index-returns/internal/scheduler"
)

// Serve runs the HTTP API and, when enabled, the periodic refresh.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	// The first load runs here, ahead of any startup delay; the scheduler only
	// handles later ticks. A failed first load leaves the API answering 503
	// until a refresh succeeds.
	if err := st.engine.Refresh(ctx, time.Now().UTC()); err != nil {
		a.Logger.Warn().Err(err).Msg("initial load failed; serving without data")
	}

	server := httpapi.NewServer(a.Config.Server, httpapi.NewRouter(st.engine, a.Logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().Str("addr", server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		a.Logger.Info().Msg("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})

	if a.Config.Refresh.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Refresh.Interval,
			AlignToStart: true,
			StartupDelay: a.Config.Refresh.StartupDelay,
		}, a.Logger)
		g.Go(func() error {
			err := sched.Run(gctx, st.engine.Refresh)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}
	a.Logger.Info().Msg("server stopped")
	return nil
}
