package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

const defaultActionTimeout = 15 * time.Second

// ChromeOptions parameterise the chromedp launcher.
type ChromeOptions struct {
	// RemoteURL connects to an already running browser's DevTools endpoint instead
	// of starting a local one.
	RemoteURL     string
	ExecPath      string
	Headless      bool
	WindowWidth   int
	WindowHeight  int
	UserAgent     string
	ActionTimeout time.Duration
}

// Chrome launches pages backed by a Chrome/Chromium instance.
type Chrome struct {
	opts   ChromeOptions
	logger zerolog.Logger
}

// NewChrome constructs a Chrome launcher.
func NewChrome(opts ChromeOptions, logger zerolog.Logger) *Chrome {
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = 1400
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = 1000
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	return &Chrome{opts: opts, logger: logger.With().Str("component", "chrome").Logger()}
}

// Launch starts a browser and opens one tab.
func (c *Chrome) Launch(ctx context.Context) (Page, error) {
	// The browser lives for the whole run, not for the caller's context.
	base := context.WithoutCancel(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if c.opts.RemoteURL != "" {
		c.logger.Info().Str("remote_url", c.opts.RemoteURL).Msg("connecting to remote browser")
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, c.opts.RemoteURL)
	} else {
		c.logger.Info().Bool("headless", c.opts.Headless).Msg("starting new browser instance")
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", c.opts.Headless),
			chromedp.WindowSize(c.opts.WindowWidth, c.opts.WindowHeight),
		)
		if c.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
		}
		if c.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(c.opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, opts...)
	}

	logger := c.logger
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	}))

	// An empty Run allocates the browser and the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, &SessionError{Op: "launch", Err: err}
	}

	return &chromePage{
		ctx:           tabCtx,
		cancelTab:     tabCancel,
		cancelAlloc:   allocCancel,
		actionTimeout: c.opts.ActionTimeout,
		logger:        c.logger,
	}, nil
}

type chromeElement struct {
	node *cdp.Node
}

func (e chromeElement) String() string {
	return fmt.Sprintf("%s#%d", strings.ToLower(e.node.NodeName), e.node.NodeID)
}

type chromePage struct {
	ctx           context.Context
	cancelTab     context.CancelFunc
	cancelAlloc   context.CancelFunc
	actionTimeout time.Duration
	logger        zerolog.Logger
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// classify maps chromedp failures onto the package taxonomy. Anything raised by
// the browser layer that is not a timeout or a detached node is a session failure.
func (p *chromePage) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if p.ctx.Err() != nil {
		return &SessionError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	msg := err.Error()
	if strings.Contains(msg, "Could not find node") || strings.Contains(msg, "No node with given id") || strings.Contains(msg, "Node is detached") {
		return fmt.Errorf("%s: %w", op, ErrStale)
	}
	return &SessionError{Op: op, Err: err}
}

func nodeOf(el Element) (*cdp.Node, error) {
	ce, ok := el.(chromeElement)
	if !ok || ce.node == nil {
		return nil, fmt.Errorf("renderer: foreign element %T", el)
	}
	return ce.node, nil
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		// A page that does not load in time is a session-level failure.
		return &SessionError{Op: "navigate", Err: err}
	}
	return nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.classify("wait visible", p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)))
}

func (p *chromePage) query(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]Element, error) {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := p.run(ctx, p.actionTimeout, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, p.classify("query "+selector, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, chromeElement{node: n})
	}
	return out, nil
}

func (p *chromePage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	return p.query(ctx, selector)
}

func (p *chromePage) FindOne(ctx context.Context, scope Element, selector string) (Element, error) {
	var opts []chromedp.QueryOption
	if scope != nil {
		node, err := nodeOf(scope)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(node))
	}
	found, err := p.query(ctx, selector, opts...)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return found[0], nil
}

func (p *chromePage) Text(ctx context.Context, el Element) (string, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := p.run(ctx, p.actionTimeout, chromedp.Text([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", p.classify("text", err)
	}
	return text, nil
}

func (p *chromePage) Attribute(ctx context.Context, el Element, name string) (string, bool, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", false, err
	}
	var (
		value string
		ok    bool
	)
	if err := p.run(ctx, p.actionTimeout, chromedp.AttributeValue([]cdp.NodeID{node.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, p.classify("attribute "+name, err)
	}
	return value, ok, nil
}

func (p *chromePage) OuterHTML(ctx context.Context, el Element) (string, error) {
	node, err := nodeOf(el)
	if err != nil {
		return "", err
	}
	var html string
	if err := p.run(ctx, p.actionTimeout, chromedp.OuterHTML([]cdp.NodeID{node.NodeID}, &html, chromedp.ByNodeID)); err != nil {
		return "", p.classify("outer html", err)
	}
	return html, nil
}

func (p *chromePage) ScrollIntoView(ctx context.Context, el Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return p.classify("scroll", p.run(ctx, p.actionTimeout, chromedp.ScrollIntoView([]cdp.NodeID{node.NodeID}, chromedp.ByNodeID)))
}

func (p *chromePage) Click(ctx context.Context, el Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return p.classify("click", p.run(ctx, p.actionTimeout, chromedp.Click([]cdp.NodeID{node.NodeID}, chromedp.ByNodeID)))
}

// Close shuts the tab and the browser down. It is best-effort.
func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancelTab()
	p.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var _ Launcher = (*Chrome)(nil)
var _ Page = (*chromePage)(nil)
