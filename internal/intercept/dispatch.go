package intercept

import (
	"context"

	"privacy-guardian/internal/surface"
)

// EventKind is the kind of a page input event.
type EventKind int

// Page input events the controller listens for.
const (
	EventClick EventKind = iota
	EventKeyDown
)

// Event is one user input event as seen by a capturing listener.
type Event struct {
	Kind   EventKind
	Target surface.Element // click target
	Key    string          // key name for EventKeyDown
	Shift  bool
}

// Dispatch routes a page event into the workflow. A click on (or inside) the
// submit control, or Enter without Shift while the input has focus, starts
// HandleSubmission.
//
// intercepted is false when the event is not a submission or interception is
// inactive; the caller then lets the event's default action run. When it is
// true the default action must be suppressed: the workflow re-issues the
// submission itself.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (intercepted bool, out Outcome) {
	page := c.Page()
	switch ev.Kind {
	case EventClick:
		if ev.Target == nil {
			return false, ""
		}
		submit, ok := page.Closest(ev.Target, c.profile.SubmitLocator)
		if !ok {
			return false, ""
		}
		out = c.HandleSubmission(ctx, submit)
	case EventKeyDown:
		if ev.Key != "Enter" || ev.Shift || !c.inputFocused(page) {
			return false, ""
		}
		out = c.HandleSubmission(ctx, nil)
	default:
		return false, ""
	}
	return out != OutcomeInactive, out
}

// inputFocused reports whether focus is on the input or inside it.
func (c *Controller) inputFocused(page surface.Page) bool {
	if c.profile.InputLocator == "" {
		return false
	}
	input, ok := page.Query(c.profile.InputLocator)
	if !ok {
		return false
	}
	focused, ok := page.Focused()
	if !ok {
		return false
	}
	holder, ok := page.Closest(focused, c.profile.InputLocator)
	return ok && holder == input
}
