package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/metrics"
	"ffcalendar/internal/renderer"
)

// DayScraper extracts the events of one day from a page.
type DayScraper interface {
	ScrapeDay(ctx context.Context, page renderer.Page, day time.Time, known calendar.Index) (calendar.DayResult, error)
}

// State is a step of the per-day retry machine.
type State int

const (
	Attempting State = iota
	TransientFail
	UnexpectedFail
	Success
	ExhaustedSkip
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case TransientFail:
		return "transient_fail"
	case UnexpectedFail:
		return "unexpected_fail"
	case Success:
		return "success"
	case ExhaustedSkip:
		return "exhausted_skip"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errPanic = errors.New("scraper panic")

// RetryOptions bound the retries of one day.
type RetryOptions struct {
	MaxAttempts  int
	RestartDelay time.Duration
}

// RetryController owns the renderer page and replaces it whenever the
// browser session fails underneath a day.
type RetryController struct {
	opts     RetryOptions
	launcher renderer.Launcher
	scraper  DayScraper
	metrics  *metrics.Recorder
	logger   zerolog.Logger

	page         renderer.Page
	replacements int
	pause        func(time.Duration)
}

// NewRetryController constructs a controller; the first page is launched lazily.
func NewRetryController(opts RetryOptions, launcher renderer.Launcher, scraper DayScraper, rec *metrics.Recorder, logger zerolog.Logger) *RetryController {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &RetryController{
		opts:     opts,
		launcher: launcher,
		scraper:  scraper,
		metrics:  rec,
		logger:   logger.With().Str("component", "retry").Logger(),
		pause:    time.Sleep,
	}
}

// Replacements reports how many times the page has been replaced.
func (c *RetryController) Replacements() int {
	return c.replacements
}

// Run scrapes day until it succeeds, fails unexpectedly or runs out of attempts.
// Only Success can carry events; the other terminal states return an empty result.
func (c *RetryController) Run(ctx context.Context, day time.Time, known calendar.Index) (calendar.DayResult, State) {
	started := time.Now()
	logger := c.logger.With().Str("day", day.Format(time.DateOnly)).Logger()

	state := Attempting
	attempts := 0
	var result calendar.DayResult

	for {
		switch state {
		case Attempting:
			res, err := c.attempt(ctx, day, known)
			switch {
			case err == nil:
				result = res
				state = Success
			case renderer.IsTransient(err):
				logger.Warn().Err(err).Int("attempt", attempts+1).Msg("renderer session failed")
				state = TransientFail
			default:
				logger.Error().Err(err).Msg("day abandoned after unexpected failure")
				state = UnexpectedFail
			}

		case TransientFail:
			attempts++
			c.replace(ctx)
			if attempts >= c.opts.MaxAttempts {
				state = ExhaustedSkip
				continue
			}
			state = Attempting

		case Success:
			outcome := metrics.OutcomeSuccess
			if len(result) == 0 {
				outcome = metrics.OutcomeEmpty
			}
			c.metrics.Day(outcome, time.Since(started))
			return result, state

		case ExhaustedSkip:
			logger.Warn().Int("attempts", attempts).Msg("retries exhausted, skipping day")
			c.metrics.Day(metrics.OutcomeExhausted, time.Since(started))
			return calendar.DayResult{}, state

		case UnexpectedFail:
			c.metrics.Day(metrics.OutcomeFailed, time.Since(started))
			return calendar.DayResult{}, state
		}
	}
}

func (c *RetryController) attempt(ctx context.Context, day time.Time, known calendar.Index) (result calendar.DayResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()

	if c.page == nil {
		page, err := c.launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		c.page = page
	}
	return c.scraper.ScrapeDay(ctx, c.page, day, known)
}

// replace shuts the current page down, waits, and launches a fresh one. A
// failed launch leaves no page; the next attempt launches again.
func (c *RetryController) replace(ctx context.Context) {
	c.replacements++
	c.metrics.Replacement()

	c.closePage()
	if c.opts.RestartDelay > 0 {
		c.pause(c.opts.RestartDelay)
	}

	page, err := c.launcher.Launch(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("relaunch failed")
		return
	}
	c.page = page
}

func (c *RetryController) closePage() {
	if c.page == nil {
		return
	}
	if err := c.page.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("close page")
	}
	c.page = nil
}

// Close releases the page.
func (c *RetryController) Close() {
	c.closePage()
}
