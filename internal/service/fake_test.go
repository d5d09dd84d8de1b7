package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ffcalendar/internal/alerting"
	"ffcalendar/internal/calendar"
	"ffcalendar/internal/renderer"
)

var errSession = &renderer.SessionError{Op: "navigate", Err: errors.New("websocket closed")}

// stubPage satisfies renderer.Page; the scripted scraper never touches it.
type stubPage struct {
	renderer.Page
	id     int
	closed bool
}

func (p *stubPage) Close() error {
	p.closed = true
	return nil
}

type stubLauncher struct {
	pages    []*stubPage
	failures []error
}

func (l *stubLauncher) Launch(ctx context.Context) (renderer.Page, error) {
	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	page := &stubPage{id: len(l.pages) + 1}
	l.pages = append(l.pages, page)
	return page, nil
}

// scriptedScraper returns errs in order, then result.
type scriptedScraper struct {
	errs   []error
	result calendar.DayResult
	pages  []renderer.Page
	calls  int
	panics bool
}

func (s *scriptedScraper) ScrapeDay(ctx context.Context, page renderer.Page, day time.Time, known calendar.Index) (calendar.DayResult, error) {
	s.calls++
	s.pages = append(s.pages, page)
	if s.panics {
		panic("nil map write")
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.result, nil
}

// memStore keeps the dataset in memory and counts collaborator calls.
type memStore struct {
	events     []calendar.Event
	merges     int
	persists   int
	persistErr error
}

func (s *memStore) Load(ctx context.Context) ([]calendar.Event, error) {
	return append([]calendar.Event(nil), s.events...), nil
}

func (s *memStore) Merge(existing, incoming []calendar.Event) []calendar.Event {
	s.merges++
	return calendar.Merge(existing, incoming)
}

func (s *memStore) Persist(ctx context.Context, events []calendar.Event) error {
	s.persists++
	if s.persistErr != nil {
		return s.persistErr
	}
	s.events = append([]calendar.Event(nil), events...)
	return nil
}

func (s *memStore) Close() {}

// dayRunner yields canned results per day.
type dayRunner struct {
	byDay map[string]calendar.DayResult
	days  []string
	onRun func(day time.Time)
}

func (r *dayRunner) Run(ctx context.Context, day time.Time, known calendar.Index) (calendar.DayResult, State) {
	key := day.Format(time.DateOnly)
	r.days = append(r.days, key)
	if r.onRun != nil {
		r.onRun(day)
	}
	res := r.byDay[key]
	return res, Success
}

type recordingPublisher struct {
	batches [][]calendar.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events []calendar.Event) error {
	p.batches = append(p.batches, events)
	return nil
}

type recordingNotifier struct {
	digests []alerting.Digest
}

func (n *recordingNotifier) Notify(ctx context.Context, digest alerting.Digest) error {
	n.digests = append(n.digests, digest)
	return nil
}

func eventsOn(day time.Time, impacts ...calendar.Impact) calendar.DayResult {
	out := make(calendar.DayResult, 0, len(impacts))
	for i, impact := range impacts {
		out = append(out, calendar.Event{
			Timestamp: day.Add(time.Duration(8+i) * time.Hour),
			Currency:  "USD",
			Impact:    impact,
			Name:      fmt.Sprintf("Event %d", i),
		})
	}
	return out
}
