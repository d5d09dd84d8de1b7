package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/alerting"
	"ffcalendar/internal/calendar"
	"ffcalendar/internal/config"
	"ffcalendar/internal/scheduler"
)

// Service keeps a rolling window of the calendar fresh.
type Service struct {
	scheduler *scheduler.Scheduler
	walker    *Walker
	notifier  alerting.Notifier
	logger    zerolog.Logger

	loc       *time.Location
	lookback  int
	lookahead int
	minImpact calendar.Impact
	now       func() time.Time

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// New constructs the watch service. notifier may be nil.
func New(cfg *config.Config, loc *time.Location, sched *scheduler.Scheduler, walker *Walker, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	minImpact := calendar.ParseImpact(cfg.Alerting.MinImpact)
	if minImpact == calendar.ImpactNone {
		minImpact = calendar.ImpactHigh
	}
	if !cfg.Alerting.Enabled {
		notifier = nil
	}

	return &Service{
		scheduler: sched,
		walker:    walker,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		loc:       loc,
		lookback:  cfg.Scheduler.LookbackDays,
		lookahead: cfg.Scheduler.LookaheadDays,
		minImpact: minImpact,
		now:       time.Now,
	}
}

// Run begins the scheduled scrape loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick walks the window around the tick and announces new events.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	start, end := scheduler.Window(tick, s.loc, s.lookback, s.lookahead)
	summary, err := s.walker.Walk(ctx, start, end)

	s.mu.Lock()
	s.lastRun = s.now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("walk %s..%s: %w", start.Format(time.DateOnly), end.Format(time.DateOnly), err)
	}

	s.Announce(ctx, summary.Added, start, end)
	return nil
}

// Announce sends a digest of the events at or above the configured impact.
// Delivery failures are logged.
func (s *Service) Announce(ctx context.Context, events []calendar.Event, from, to time.Time) {
	if s.notifier == nil {
		return
	}
	selected := alerting.Select(events, s.minImpact)
	if len(selected) == 0 {
		return
	}
	digest := alerting.Digest{
		Title:  fmt.Sprintf("%d new %s impact events", len(selected), s.minImpact),
		From:   from,
		To:     to,
		Events: selected,
	}
	if err := s.notifier.Notify(ctx, digest); err != nil {
		s.logger.Error().Err(err).Int("events", len(selected)).Msg("failed to dispatch digest")
	}
}

// Health reports the outcome of the most recent walk.
func (s *Service) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return fmt.Errorf("last walk at %s failed: %w", s.lastRun.Format(time.RFC3339), s.lastErr)
	}
	return nil
}
