// Package portal drives the login and data-entry workflow against the
// remote web portal. It talks to the browser through the Page/Element
// interfaces so the state machines stay independent of the automation
// backend.
package portal

import "errors"

// ErrNotFound is returned by Page.Element when no element matches the
// descriptor.
var ErrNotFound = errors.New("element not found")

// Page is one user's live page-control session. Implemented by
// internal/browser. A Page is only ever driven by a single command at a
// time; ownership is enforced by the busy gate.
type Page interface {
	// Navigate loads the URL and waits for the page to load
	Navigate(url string) error

	// Element finds the first element matching the descriptor
	// (XPath when it starts with "/" or "(", CSS otherwise).
	// Returns ErrNotFound (wrapped) when absent.
	Element(selector string) (Element, error)

	// Elements finds all matching elements; empty slice when none
	Elements(selector string) ([]Element, error)

	// Alive reports whether the underlying browser is still reachable
	Alive() bool

	// Close releases the browser resources
	Close() error
}

// Element is a located element on a Page.
type Element interface {
	// Text returns the visible text content
	Text() (string, error)

	// Attribute returns the attribute value and whether the attribute is
	// present at all (boolean attributes like readonly carry no value)
	Attribute(name string) (value string, ok bool, err error)

	// Input types text into the element
	Input(text string) error

	// Clear removes the element's current value
	Clear() error

	// Click activates the element, escalating through click strategies
	Click() error

	// Resource fetches the raw bytes behind the element (e.g. an <img> src)
	Resource() ([]byte, error)
}
