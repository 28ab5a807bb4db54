// Package browser is the page automation layer the navigator drives. It exposes just
// enough of a page to find a form control, operate it and read back the rendered options.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a locator matches nothing.
	ErrNotFound = errors.New("element not found")
	// ErrNoSuchOption is returned by SelectByText when no option has the requested visible text.
	ErrNoSuchOption = errors.New("no option with that visible text")
	// ErrNotSelect is returned when an option operation is attempted on something that is not a <select>.
	ErrNotSelect = errors.New("element is not a select")
	// ErrStale is returned when an element was removed from the document after it was found,
	// usually because the page re-rendered.
	ErrStale = errors.New("element is no longer attached to the page")
)

// Opener opens a fresh, isolated page session on a url.
type Opener interface {
	Open(ctx context.Context, url string) (Page, error)
}

// Page is a loaded document. Close must be called exactly once, it releases the
// session and any scratch resources created for it.
type Page interface {
	// ElementByID locates an element by its id attribute.
	ElementByID(ctx context.Context, id string) (Element, error)
	// SelectAfterLabel locates the first <select> that follows, in document order, a <label>
	// whose normalized text contains `phrase`.
	SelectAfterLabel(ctx context.Context, phrase string) (Element, error)
	// QueryAll returns every element matching a CSS selector, in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Close() error
}

type Element interface {
	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)
	// Visible reports whether the element is displayed.
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	// SelectByText selects the option of a <select> whose visible text (whitespace normalized)
	// equals `text`.
	SelectByText(ctx context.Context, text string) error
	// OptionTexts lists the visible texts of the options of a <select>.
	OptionTexts(ctx context.Context) ([]string, error)
}
