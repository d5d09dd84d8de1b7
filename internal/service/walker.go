package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/metrics"
	"ffcalendar/internal/publish"
	"ffcalendar/internal/storage"
)

// DayRunner produces the result of one calendar day.
type DayRunner interface {
	Run(ctx context.Context, day time.Time, known calendar.Index) (calendar.DayResult, State)
}

// Summary describes a finished walk.
type Summary struct {
	Days         int
	DaysWithData int
	DaysSkipped  int
	NewRecords   int
	Added        []calendar.Event
	Duration     time.Duration
	Interrupted  bool
}

// Walker visits an inclusive range of days one at a time, persisting the
// dataset after each day that produced events.
type Walker struct {
	store     storage.Store
	runner    DayRunner
	publisher publish.Publisher
	loc       *time.Location
	metrics   *metrics.Recorder
	logger    zerolog.Logger
}

// NewWalker wires the walker. publisher may be nil.
func NewWalker(store storage.Store, runner DayRunner, publisher publish.Publisher, loc *time.Location, rec *metrics.Recorder, logger zerolog.Logger) *Walker {
	if loc == nil {
		loc = time.UTC
	}
	return &Walker{
		store:     store,
		runner:    runner,
		publisher: publisher,
		loc:       loc,
		metrics:   rec,
		logger:    logger.With().Str("component", "walker").Logger(),
	}
}

// Walk scrapes [start, end]. Cancellation stops the walk between days. A
// persist failure ends the walk with an error after one last flush attempt.
func (w *Walker) Walk(ctx context.Context, start, end time.Time) (Summary, error) {
	started := time.Now()
	start = calendar.StartOfDay(start, w.loc)
	end = calendar.StartOfDay(end, w.loc)
	if end.Before(start) {
		return Summary{}, fmt.Errorf("end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	dataset, err := w.store.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load dataset: %w", err)
	}
	known := calendar.NewIndex(dataset)
	w.logger.Info().
		Str("start", start.Format(time.DateOnly)).
		Str("end", end.Format(time.DateOnly)).
		Int("stored", len(dataset)).
		Msg("walk started")

	var (
		summary    Summary
		persistErr error
	)

	for day := start; !day.After(end); day = calendar.StartOfDay(day.AddDate(0, 0, 1), w.loc) {
		if ctx.Err() != nil {
			summary.Interrupted = true
			w.logger.Warn().Str("next_day", day.Format(time.DateOnly)).Msg("walk interrupted")
			break
		}

		// A started day is finished regardless of cancellation.
		dayCtx := context.WithoutCancel(ctx)
		result, state := w.runner.Run(dayCtx, day, known)
		summary.Days++

		if len(result) == 0 {
			summary.DaysSkipped++
			w.logger.Debug().Str("day", day.Format(time.DateOnly)).Str("state", state.String()).Msg("no events for day")
			continue
		}
		summary.DaysWithData++

		added := newEvents(dataset, result)
		count := len(added)
		dataset = w.store.Merge(dataset, result)
		known = calendar.NewIndex(dataset)
		summary.NewRecords += count
		summary.Added = append(summary.Added, added...)

		if err := w.store.Persist(dayCtx, dataset); err != nil {
			persistErr = fmt.Errorf("persist after %s: %w", day.Format(time.DateOnly), err)
			w.logger.Error().Err(err).Str("day", day.Format(time.DateOnly)).Msg("persist failed")
			break
		}
		w.metrics.Persisted(count, time.Now())
		w.logger.Info().
			Str("day", day.Format(time.DateOnly)).
			Int("events", len(result)).
			Int("new", count).
			Int("total", len(dataset)).
			Msg("day merged")

		if w.publisher != nil && len(added) > 0 {
			if err := w.publisher.Publish(dayCtx, added); err != nil {
				w.logger.Warn().Err(err).Str("day", day.Format(time.DateOnly)).Msg("publish new events")
			}
		}
	}

	flushErr := w.store.Persist(context.WithoutCancel(ctx), dataset)
	if flushErr != nil {
		flushErr = fmt.Errorf("final flush: %w", flushErr)
		w.logger.Error().Err(flushErr).Msg("final flush failed")
	}

	summary.Duration = time.Since(started)
	w.logger.Info().
		Int("days", summary.Days).
		Int("days_with_data", summary.DaysWithData).
		Int("days_skipped", summary.DaysSkipped).
		Int("new_records", summary.NewRecords).
		Dur("duration", summary.Duration).
		Bool("interrupted", summary.Interrupted).
		Msg("walk finished")

	return summary, errors.Join(persistErr, flushErr)
}

// newEvents returns the events of result whose key is not yet in dataset.
func newEvents(dataset []calendar.Event, result calendar.DayResult) []calendar.Event {
	seen := make(map[calendar.Key]struct{}, len(dataset)+len(result))
	for _, ev := range dataset {
		seen[ev.Key()] = struct{}{}
	}
	added := make([]calendar.Event, 0)
	for _, ev := range result {
		key := ev.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		added = append(added, ev)
	}
	return added
}
