package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ffcalendar/internal/alerting"
	"ffcalendar/internal/calendar"
	"ffcalendar/internal/storage"
)

// Notify sends a digest of the stored events of one day through the
// configured channels.
func (a *App) Notify(ctx context.Context, opts NotifyOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	loc, err := a.location()
	if err != nil {
		return err
	}
	day := calendar.StartOfDay(time.Now(), loc)
	if opts.Day != "" {
		d, err := ParseDate(opts.Day, loc)
		if err != nil {
			return fmt.Errorf("--day: %w", err)
		}
		day = calendar.StartOfDay(d, loc)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	next := day.AddDate(0, 0, 1)
	events, err := storage.ListBetween(ctx, store, day, next)
	if err != nil {
		return err
	}

	minImpact := calendar.ParseImpact(a.Config.Alerting.MinImpact)
	if minImpact == calendar.ImpactNone {
		minImpact = calendar.ImpactHigh
	}
	selected := alerting.Select(events, minImpact)
	if len(selected) == 0 {
		a.Logger.Info().Str("day", day.Format(time.DateOnly)).Msg("nothing to notify")
		return nil
	}

	return notifier.Notify(ctx, alerting.Digest{
		Title:  fmt.Sprintf("%s impact events on %s", minImpact, day.Format("Mon 02 Jan 2006")),
		From:   day,
		To:     day,
		Events: selected,
	})
}
