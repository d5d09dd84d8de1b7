package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/detail"
	"ffcalendar/internal/metrics"
	"ffcalendar/internal/renderer"
)

const (
	detailLinkSelector  = "td.calendar__detail a"
	detailPanelSelector = "tr.calendar__details--detail"
	closeDetailSelector = `a[title="Close Detail"]`
	panelPollInterval   = 100 * time.Millisecond
)

// DetailOptions parameterise a DetailResolver.
type DetailOptions struct {
	Enabled      bool
	PanelTimeout time.Duration
	// SettleDelay is waited between scrolling the control into view and clicking it.
	SettleDelay time.Duration
}

// DetailResolver produces the detail block of a row, reusing persisted ones.
type DetailResolver struct {
	opts    DetailOptions
	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewDetailResolver constructs a DetailResolver.
func NewDetailResolver(opts DetailOptions, rec *metrics.Recorder, logger zerolog.Logger) *DetailResolver {
	if opts.PanelTimeout <= 0 {
		opts.PanelTimeout = 7 * time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &DetailResolver{
		opts:    opts,
		metrics: rec,
		logger:  logger.With().Str("component", "detail_resolver").Logger(),
	}
}

// Enabled reports whether details are scraped at all.
func (r *DetailResolver) Enabled() bool {
	return r != nil && r.opts.Enabled
}

// Resolve never fails: any problem during a live fetch yields "".
func (r *DetailResolver) Resolve(ctx context.Context, page renderer.Page, row renderer.Element, key calendar.Key, known calendar.Index) string {
	if !r.Enabled() {
		return ""
	}

	if stored, ok := known.Detail(key); ok {
		r.metrics.Detail(metrics.DetailReused)
		return stored
	}

	text, err := r.fetch(ctx, page, row)
	if err != nil {
		r.metrics.Detail(metrics.DetailFailed)
		r.logger.Debug().Err(err).Str("currency", key.Currency).Str("event", key.Name).Msg("detail unavailable")
		return ""
	}
	r.metrics.Detail(metrics.DetailFetched)
	return text
}

func (r *DetailResolver) fetch(ctx context.Context, page renderer.Page, row renderer.Element) (text string, err error) {
	defer r.closePanel(ctx, page, row)
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("detail fetch panicked: %v", p)
		}
	}()

	link, err := page.FindOne(ctx, row, detailLinkSelector)
	if err != nil {
		return "", fmt.Errorf("detail control: %w", err)
	}
	// Panels left open by an earlier row must not be mistaken for this one.
	leftover, err := panelIDs(ctx, page)
	if err != nil {
		return "", fmt.Errorf("list detail panels: %w", err)
	}
	if err := page.ScrollIntoView(ctx, link); err != nil {
		return "", fmt.Errorf("scroll detail control: %w", err)
	}
	if r.opts.SettleDelay > 0 {
		time.Sleep(r.opts.SettleDelay)
	}
	if err := page.Click(ctx, link); err != nil {
		return "", fmt.Errorf("open detail: %w", err)
	}
	deadline := time.Now().Add(r.opts.PanelTimeout)
	if err := page.WaitVisible(ctx, detailPanelSelector, r.opts.PanelTimeout); err != nil {
		return "", fmt.Errorf("wait for detail panel: %w", err)
	}

	panel, err := r.openedPanel(ctx, page, leftover, deadline)
	if err != nil {
		return "", fmt.Errorf("detail panel: %w", err)
	}
	html, err := page.OuterHTML(ctx, panel)
	if err != nil {
		return "", fmt.Errorf("read detail panel: %w", err)
	}

	block, err := detail.Parse(html)
	if err != nil {
		return "", err
	}
	return block.String(), nil
}

// openedPanel polls until a panel not present before the click shows up.
func (r *DetailResolver) openedPanel(ctx context.Context, page renderer.Page, leftover map[string]struct{}, deadline time.Time) (renderer.Element, error) {
	for {
		panels, err := page.FindAll(ctx, detailPanelSelector)
		if err != nil {
			return nil, err
		}
		for _, p := range panels {
			if _, old := leftover[p.String()]; !old {
				return p, nil
			}
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("no new panel: %w", renderer.ErrTimeout)
		}
		time.Sleep(panelPollInterval)
	}
}

func panelIDs(ctx context.Context, page renderer.Page) (map[string]struct{}, error) {
	panels, err := page.FindAll(ctx, detailPanelSelector)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(panels))
	for _, p := range panels {
		ids[p.String()] = struct{}{}
	}
	return ids, nil
}

func (r *DetailResolver) closePanel(ctx context.Context, page renderer.Page, row renderer.Element) {
	defer func() { _ = recover() }()

	closer, err := page.FindOne(ctx, row, closeDetailSelector)
	if err != nil {
		return
	}
	if err := page.Click(ctx, closer); err != nil {
		r.logger.Debug().Err(err).Msg("closing detail panel failed")
	}
}
