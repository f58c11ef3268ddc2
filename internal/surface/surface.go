// Package surface is the page-side view of a chat surface: the elements the
// interception workflow reads, rewrites and clicks.
package surface

// Element is one located control on the page.
type Element interface {
	// Text returns the element's current value, or its text content for
	// elements without one.
	Text() string
	// SetText replaces the value and dispatches the change notification the
	// page's framework observes.
	SetText(text string) error
	// Click performs the element's native click. It does not pass through any
	// interception layer.
	Click() error
}

// Page resolves locators against the current page state. Lookups are never
// cached: each call sees the page as it is now.
type Page interface {
	URL() string
	Query(locator string) (Element, bool)
	QueryAll(locator string) []Element
	// Closest returns el or its nearest ancestor matching locator.
	Closest(el Element, locator string) (Element, bool)
	// Focused returns the element holding keyboard focus, if any.
	Focused() (Element, bool)
}
