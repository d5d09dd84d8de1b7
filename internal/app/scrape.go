package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"ffcalendar/internal/logging"
	"ffcalendar/internal/service"
	"ffcalendar/internal/storage"
)

// Scrape walks an inclusive date range once and persists every day with events.
func (a *App) Scrape(ctx context.Context, opts ScrapeOptions) error {
	if opts.Timezone != "" {
		a.Config.Calendar.Timezone = opts.Timezone
	}
	if opts.CSVPath != "" {
		a.Config.Storage.Driver = "csv"
		a.Config.Storage.CSVPath = opts.CSVPath
	}
	if opts.Details {
		a.Config.Scrape.Details = true
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	loc, err := a.location()
	if err != nil {
		return err
	}
	start, err := ParseDate(opts.Start, loc)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := ParseDate(opts.End, loc)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("--end %s is before --start %s", opts.End, opts.Start)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, runID := logging.WithRun(a.Logger)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Fresh {
		resetter, ok := store.(storage.Resetter)
		if !ok {
			return fmt.Errorf("storage driver %s cannot be reset", a.Config.Storage.Driver)
		}
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
		logger.Warn().Str("driver", a.Config.Storage.Driver).Msg("dataset reset before scrape")
	}

	pub, closePub, err := a.newPublisher()
	if err != nil {
		return err
	}
	defer closePub()

	walker, retry := a.pipeline(store, pub, loc, logger)
	defer retry.Close()

	logger.Info().
		Str("start", start.Format(time.DateOnly)).
		Str("end", end.Format(time.DateOnly)).
		Str("timezone", loc.String()).
		Bool("details", a.Config.Scrape.Details).
		Msg("starting scrape")

	summary, walkErr := walker.Walk(ctx, start, end)

	svc := service.New(a.Config, loc, nil, walker, a.newNotifier(), logger)
	svc.Announce(context.WithoutCancel(ctx), summary.Added, start, end)

	if url := a.Config.Metrics.PushgatewayURL; url != "" {
		if err := a.Metrics.Push(context.WithoutCancel(ctx), url, a.Config.Metrics.Job); err != nil {
			logger.Warn().Err(err).Msg("push metrics")
		}
	}

	if walkErr != nil {
		return walkErr
	}

	fmt.Fprintf(a.out, "run %s: %d days (%d with events, %d empty), %d new records in %s\n",
		runID, summary.Days, summary.DaysWithData, summary.DaysSkipped, summary.NewRecords,
		summary.Duration.Round(time.Millisecond))
	if summary.Interrupted {
		return errors.New("scrape interrupted before the end of the range")
	}
	return nil
}
