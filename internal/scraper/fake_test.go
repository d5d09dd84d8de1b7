package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ffcalendar/internal/renderer"
)

// fakeNode is a tiny DOM node: children are addressed by the selector used to find them.
type fakeNode struct {
	name     string
	text     string
	attrs    map[string]string
	children map[string]*fakeNode
	stale    bool
}

func (n *fakeNode) String() string { return n.name }

// fakePage implements renderer.Page over fakeNodes and records interactions.
type fakePage struct {
	navigateErr error
	waitErr     map[string]error
	rows        []*fakeNode
	document    map[string]*fakeNode
	// textErr injects a failure when reading the named node's text.
	textErr map[string]error
	// panels are the detail panels currently rendered. Clicking a node named in
	// opens renders its panel; clicking a close control removes the newest one
	// unless closeFails is set.
	panels     []*fakeNode
	opens      map[string]*fakeNode
	closeFails bool

	navigated []string
	clicks    []string
	scrolls   []string
	closed    bool
}

func newFakePage(rows ...*fakeNode) *fakePage {
	return &fakePage{
		waitErr:  map[string]error{},
		document: map[string]*fakeNode{},
		textErr:  map[string]error{},
		opens:    map[string]*fakeNode{},
		rows:     rows,
	}
}

func asNode(el renderer.Element) *fakeNode {
	n, ok := el.(*fakeNode)
	if !ok {
		panic(fmt.Sprintf("unexpected element %T", el))
	}
	return n
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.navigated = append(p.navigated, url)
	return p.navigateErr
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitErr[selector]
}

func (p *fakePage) FindAll(ctx context.Context, selector string) ([]renderer.Element, error) {
	nodes := p.rows
	if selector == detailPanelSelector {
		nodes = p.panels
	}
	out := make([]renderer.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out, nil
}

func (p *fakePage) FindOne(ctx context.Context, scope renderer.Element, selector string) (renderer.Element, error) {
	children := p.document
	if scope != nil {
		n := asNode(scope)
		if n.stale {
			return nil, renderer.ErrStale
		}
		children = n.children
	}
	child, ok := children[selector]
	if !ok {
		return nil, fmt.Errorf("%s: %w", selector, renderer.ErrNotFound)
	}
	return child, nil
}

func (p *fakePage) Text(ctx context.Context, el renderer.Element) (string, error) {
	n := asNode(el)
	if err := p.textErr[n.name]; err != nil {
		return "", err
	}
	if n.stale {
		return "", renderer.ErrStale
	}
	return n.text, nil
}

func (p *fakePage) Attribute(ctx context.Context, el renderer.Element, name string) (string, bool, error) {
	n := asNode(el)
	if n.stale {
		return "", false, renderer.ErrStale
	}
	v, ok := n.attrs[name]
	return v, ok, nil
}

func (p *fakePage) OuterHTML(ctx context.Context, el renderer.Element) (string, error) {
	return asNode(el).text, nil
}

func (p *fakePage) ScrollIntoView(ctx context.Context, el renderer.Element) error {
	p.scrolls = append(p.scrolls, asNode(el).name)
	return nil
}

func (p *fakePage) Click(ctx context.Context, el renderer.Element) error {
	n := asNode(el)
	p.clicks = append(p.clicks, n.name)
	if panel, ok := p.opens[n.name]; ok {
		p.panels = append(p.panels, panel)
	}
	if strings.HasSuffix(n.name, "/detail-close") && !p.closeFails && len(p.panels) > 0 {
		p.panels = p.panels[:len(p.panels)-1]
	}
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type rowSpec struct {
	id       string
	class    string
	time     string
	currency string
	impact   string
	event    string
	actual   string
	forecast string
	previous string
	// impactText is the cell text used when the marker has no title.
	impactText string
	noMarker   bool
	withDetail bool
}

func buildRow(s rowSpec) *fakeNode {
	cell := func(sel, text string) *fakeNode {
		return &fakeNode{name: s.id + "/" + sel, text: text}
	}
	impact := cell(impactCell, s.impactText)
	if !s.noMarker {
		impact.children = map[string]*fakeNode{
			impactMarker: {name: s.id + "/impact-marker", attrs: map[string]string{impactTitleAttr: s.impact}},
		}
	}

	class := "calendar__row"
	if s.class != "" {
		class += " " + s.class
	}
	row := &fakeNode{
		name:  s.id,
		attrs: map[string]string{"class": class},
		children: map[string]*fakeNode{
			timeCell:     cell(timeCell, s.time),
			currencyCell: cell(currencyCell, s.currency),
			impactCell:   impact,
			eventCell:    cell(eventCell, s.event),
			actualCell:   cell(actualCell, s.actual),
			forecastCell: cell(forecastCell, s.forecast),
			previousCell: cell(previousCell, s.previous),
		},
	}
	if s.withDetail {
		row.children[detailLinkSelector] = &fakeNode{name: s.id + "/detail-link"}
		row.children[closeDetailSelector] = &fakeNode{name: s.id + "/detail-close"}
	}
	return row
}

var _ renderer.Page = (*fakePage)(nil)
