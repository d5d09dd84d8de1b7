package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/metrics"
	"ffcalendar/internal/renderer"
)

const (
	tableSelector    = "table.calendar__table"
	rowSelector      = "tr.calendar__row"
	impactMarker     = "span"
	impactTitleAttr  = "title"
	dayBreakerClass  = "day-breaker"
	noEventClass     = "no-event"
	defaultBaseURL   = "https://www.forexfactory.com/calendar"
	defaultPageLoad  = 180 * time.Second
	defaultTableWait = 25 * time.Second
)

// Cell selectors, in RawRow field order.
const (
	timeCell     = "td.calendar__time"
	currencyCell = "td.calendar__currency"
	impactCell   = "td.calendar__impact"
	eventCell    = "td.calendar__event"
	actualCell   = "td.calendar__actual"
	forecastCell = "td.calendar__forecast"
	previousCell = "td.calendar__previous"
)

var errSkipRow = errors.New("skip row")

// Options parameterise a DayScraper.
type Options struct {
	BaseURL         string
	PageLoadTimeout time.Duration
	TableTimeout    time.Duration
	Location        *time.Location
}

// DayScraper loads one calendar day and turns its rows into events.
type DayScraper struct {
	opts    Options
	details *DetailResolver
	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewDayScraper constructs a DayScraper.
func NewDayScraper(opts Options, details *DetailResolver, rec *metrics.Recorder, logger zerolog.Logger) *DayScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaultPageLoad
	}
	if opts.TableTimeout <= 0 {
		opts.TableTimeout = defaultTableWait
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &DayScraper{
		opts:    opts,
		details: details,
		metrics: rec,
		logger:  logger.With().Str("component", "day_scraper").Logger(),
	}
}

// DayURL returns the calendar page address for day.
func (s *DayScraper) DayURL(day time.Time) string {
	return fmt.Sprintf("%s?day=%s", strings.TrimRight(s.opts.BaseURL, "/"), calendar.DayToken(day))
}

// ScrapeDay returns the qualifying events of day. A calendar that never becomes
// visible yields an empty result and no error. Errors returned are either
// renderer session failures or unexpected failures; row-level problems are skipped.
func (s *DayScraper) ScrapeDay(ctx context.Context, page renderer.Page, day time.Time, known calendar.Index) (calendar.DayResult, error) {
	day = calendar.StartOfDay(day, s.opts.Location)
	url := s.DayURL(day)
	logger := s.logger.With().Str("day", day.Format(time.DateOnly)).Logger()
	logger.Info().Str("url", url).Msg("scraping calendar day")

	if err := page.Navigate(ctx, url, s.opts.PageLoadTimeout); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}

	if err := page.WaitVisible(ctx, tableSelector, s.opts.TableTimeout); err != nil {
		if errors.Is(err, renderer.ErrTimeout) {
			logger.Warn().Dur("timeout", s.opts.TableTimeout).Msg("calendar did not load")
			return calendar.DayResult{}, nil
		}
		return nil, fmt.Errorf("wait for calendar: %w", err)
	}

	rows, err := page.FindAll(ctx, rowSelector)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}

	result := make(calendar.DayResult, 0, len(rows))
	for _, row := range rows {
		ev, kept, err := s.readRow(ctx, page, row, day, known)
		if err != nil {
			if errors.Is(err, errSkipRow) {
				s.metrics.Row(metrics.RowSkipped)
				logger.Debug().Err(err).Str("row", row.String()).Msg("row skipped")
				continue
			}
			return nil, err
		}
		if !kept {
			continue
		}
		s.metrics.Row(metrics.RowKept)
		result = append(result, ev)
	}

	logger.Info().Int("rows", len(rows)).Int("events", len(result)).Msg("calendar day scraped")
	return result, nil
}

// readRow reports kept=false for separators and filtered impact tiers.
func (s *DayScraper) readRow(ctx context.Context, page renderer.Page, row renderer.Element, day time.Time, known calendar.Index) (calendar.Event, bool, error) {
	class, _, err := page.Attribute(ctx, row, "class")
	if err != nil {
		return calendar.Event{}, false, rowErr("row class", err)
	}
	if strings.Contains(class, dayBreakerClass) || strings.Contains(class, noEventClass) {
		return calendar.Event{}, false, nil
	}

	cells := make(map[string]renderer.Element, 7)
	for _, sel := range []string{timeCell, currencyCell, impactCell, eventCell, actualCell, forecastCell, previousCell} {
		cell, err := page.FindOne(ctx, row, sel)
		if err != nil {
			return calendar.Event{}, false, rowErr(sel, err)
		}
		cells[sel] = cell
	}

	label, err := s.impactLabel(ctx, page, cells[impactCell])
	if err != nil {
		return calendar.Event{}, false, rowErr("impact", err)
	}
	if calendar.ParseImpactLabel(label) == calendar.ImpactNone {
		s.metrics.Row(metrics.RowFiltered)
		return calendar.Event{}, false, nil
	}

	raw := calendar.RawRow{Impact: label}
	for sel, dst := range map[string]*string{
		timeCell:     &raw.Time,
		currencyCell: &raw.Currency,
		eventCell:    &raw.Name,
		actualCell:   &raw.Actual,
		forecastCell: &raw.Forecast,
		previousCell: &raw.Previous,
	} {
		text, err := page.Text(ctx, cells[sel])
		if err != nil {
			return calendar.Event{}, false, rowErr(sel, err)
		}
		*dst = text
	}

	norm, ok := calendar.Normalize(raw, day)
	if !ok {
		s.metrics.Row(metrics.RowFiltered)
		return calendar.Event{}, false, nil
	}
	if norm.TimeKind == calendar.TimeUnrecognized {
		s.metrics.UnrecognizedTime()
		s.logger.Warn().
			Str("day", day.Format(time.DateOnly)).
			Str("time_text", strings.TrimSpace(raw.Time)).
			Str("event", norm.Event.Name).
			Msg("unrecognized time text; using start of day")
	}

	ev := norm.Event
	if s.details != nil {
		ev.Detail = s.details.Resolve(ctx, page, row, ev.Key(), known)
	}
	return ev, true, nil
}

// impactLabel returns the marker's title verbatim when the attribute exists,
// even if empty. Only a missing title falls back to the trimmed cell text.
func (s *DayScraper) impactLabel(ctx context.Context, page renderer.Page, cell renderer.Element) (string, error) {
	marker, err := page.FindOne(ctx, cell, impactMarker)
	switch {
	case err == nil:
		title, ok, err := page.Attribute(ctx, marker, impactTitleAttr)
		switch {
		case err == nil && ok:
			return title, nil
		case err != nil && !errors.Is(err, renderer.ErrNotFound):
			return "", err
		}
	case !isLocal(err):
		return "", err
	}
	text, err := page.Text(ctx, cell)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// isLocal reports errors confined to a single element.
func isLocal(err error) bool {
	return errors.Is(err, renderer.ErrNotFound) || errors.Is(err, renderer.ErrStale) || errors.Is(err, renderer.ErrTimeout)
}

func rowErr(what string, err error) error {
	if isLocal(err) {
		return fmt.Errorf("%s: %w: %w", what, errSkipRow, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
