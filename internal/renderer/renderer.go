// Package renderer abstracts the browser that renders the calendar page.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout indicates a bounded wait elapsed before the element became visible.
	ErrTimeout = errors.New("renderer: wait timed out")
	// ErrNotFound indicates a query matched no element.
	ErrNotFound = errors.New("renderer: element not found")
	// ErrStale indicates an element was detached between lookup and use.
	ErrStale = errors.New("renderer: stale element")
)

// SessionError reports a failure of the browser session itself: a crashed or
// disconnected browser, a transport failure, or a page that could not be loaded.
// It is the only error class worth recovering by replacing the page.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("renderer session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsTransient reports whether err originates from the browser session.
func IsTransient(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// Element is an opaque handle to a DOM node owned by a Page.
type Element interface {
	String() string
}

// Page is one browser tab able to load and query the calendar.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// FindOne searches below scope, or the whole document when scope is nil.
	FindOne(ctx context.Context, scope Element, selector string) (Element, error)
	Text(ctx context.Context, el Element) (string, error)
	// Attribute reports ok=false when the attribute is absent.
	Attribute(ctx context.Context, el Element, name string) (value string, ok bool, err error)
	OuterHTML(ctx context.Context, el Element) (string, error)
	ScrollIntoView(ctx context.Context, el Element) error
	Click(ctx context.Context, el Element) error
	Close() error
}

// Launcher creates fresh pages.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}
