package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"ffcalendar/internal/logging"
	"ffcalendar/internal/metrics"
	"ffcalendar/internal/scheduler"
	"ffcalendar/internal/service"
)

// Watch keeps re-scraping the rolling window until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc, err := a.location()
	if err != nil {
		return err
	}
	logger, _ := logging.WithRun(a.Logger)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pub, closePub, err := a.newPublisher()
	if err != nil {
		return err
	}
	defer closePub()

	walker, retry := a.pipeline(store, pub, loc, logger)
	defer retry.Close()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Immediate:    true,
	}, logger)

	svc := service.New(a.Config, loc, sched, walker, a.newNotifier(), logger)

	var server *metrics.Server
	if addr := a.Config.Metrics.ListenAddr; addr != "" {
		server = metrics.NewServer(addr, a.Metrics, svc.Health, logger)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Int("lookback_days", a.Config.Scheduler.LookbackDays).
		Int("lookahead_days", a.Config.Scheduler.LookaheadDays).
		Msg("starting calendar watch")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	logger.Info().Msg("calendar watch stopped")
	return nil
}
