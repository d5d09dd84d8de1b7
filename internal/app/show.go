package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/storage"
)

var (
	highImpact   = color.New(color.FgRed, color.Bold)
	mediumImpact = color.New(color.FgYellow)
)

// Show prints stored events of a date range.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	from, to, err := a.resolveRange(opts.From, opts.To, 1)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := storage.ListBetween(ctx, store, from, to)
	if err != nil {
		return err
	}
	events = filterEvents(events, opts.Currency, calendar.ParseImpact(opts.MinImpact))
	if len(events) == 0 {
		fmt.Fprintln(a.out, "no events found")
		return nil
	}

	loc, _ := a.location()
	writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tCur\tImpact\tEvent\tActual\tForecast\tPrevious\tSurprise")

	for _, ev := range events {
		surprise := ""
		if s, ok := ev.Surprise(); ok {
			surprise = s.String()
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.In(loc).Format("Mon 2006-01-02 15:04"),
			ev.Currency,
			paintImpact(ev.Impact),
			sanitizeInline(ev.Name),
			ev.Actual,
			ev.Forecast,
			ev.Previous,
			surprise,
		)
	}

	return writer.Flush()
}

// resolveRange turns optional from/to dates into a half-open window in the
// calendar zone. With no dates it covers the last defaultDays days up to today.
func (a *App) resolveRange(fromText, toText string, defaultDays int) (time.Time, time.Time, error) {
	loc, err := a.location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to := calendar.StartOfDay(time.Now(), loc).AddDate(0, 0, 1)
	if toText != "" {
		t, err := ParseDate(toText, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		to = calendar.StartOfDay(t, loc).AddDate(0, 0, 1)
	}

	from := to.AddDate(0, 0, -defaultDays)
	if fromText != "" {
		f, err := ParseDate(fromText, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		from = calendar.StartOfDay(f, loc)
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before to")
	}
	return from, to, nil
}

func filterEvents(events []calendar.Event, currency string, threshold calendar.Impact) []calendar.Event {
	out := make([]calendar.Event, 0, len(events))
	for _, ev := range events {
		if currency != "" && !strings.EqualFold(ev.Currency, currency) {
			continue
		}
		if ev.Impact < threshold {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func paintImpact(i calendar.Impact) string {
	switch i {
	case calendar.ImpactHigh:
		return highImpact.Sprint(i.String())
	case calendar.ImpactMedium:
		return mediumImpact.Sprint(i.String())
	default:
		return i.String()
	}
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
