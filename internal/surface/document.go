package surface

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// EventKind names a recorded DOM event.
type EventKind string

// Recorded events.
const (
	EventInput EventKind = "input"
	EventClick EventKind = "click"
)

// Event is one dispatched DOM event, in dispatch order.
type Event struct {
	Kind   EventKind
	Target *Node
	Value  string
}

// Document is a Page backed by a parsed HTML snapshot. It is safe for
// concurrent use.
type Document struct {
	mu      sync.Mutex
	url     string
	doc     *goquery.Document
	nodes   map[*html.Node]*Node
	focused *html.Node
	events  []Event
	onClick []func(*Node)
}

// Node is an Element inside a Document. Each underlying HTML node has exactly
// one Node, so Nodes compare equal with ==.
type Node struct {
	doc *Document
	n   *html.Node
}

// Parse reads an HTML snapshot of the page at pageURL. The first element
// carrying the autofocus attribute starts focused.
func Parse(pageURL string, r io.Reader) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	d := &Document{url: pageURL, doc: gq, nodes: make(map[*html.Node]*Node)}
	if sel := gq.Find("[autofocus]").First(); sel.Length() > 0 {
		d.focused = sel.Nodes[0]
	}
	return d, nil
}

// ParseString is Parse over an in-memory snapshot.
func ParseString(pageURL, markup string) (*Document, error) {
	return Parse(pageURL, strings.NewReader(markup))
}

// URL returns the page URL.
func (d *Document) URL() string { return d.url }

// Query returns the first element matching locator.
func (d *Document) Query(locator string) (Element, bool) {
	if n, ok := d.QueryNode(locator); ok {
		return n, true
	}
	return nil, false
}

// QueryNode is Query returning the concrete node.
func (d *Document) QueryNode(locator string) (*Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(locator).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return d.wrap(sel.Nodes[0]), true
}

// QueryAll returns every element matching locator in document order.
func (d *Document) QueryAll(locator string) []Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(locator)
	out := make([]Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

// Closest returns el or its nearest ancestor matching locator.
func (d *Document) Closest(el Element, locator string) (Element, bool) {
	node, ok := el.(*Node)
	if !ok || node == nil || node.doc != d {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.FindNodes(node.n).Closest(locator)
	if sel.Length() == 0 {
		return nil, false
	}
	return d.wrap(sel.Nodes[0]), true
}

// Focused returns the focused element.
func (d *Document) Focused() (Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focused == nil {
		return nil, false
	}
	return d.wrap(d.focused), true
}

// Focus moves keyboard focus to n.
func (d *Document) Focus(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n == nil {
		d.focused = nil
		return
	}
	d.focused = n.n
}

// OnClick registers fn to run after every native click, outside the
// document lock.
func (d *Document) OnClick(fn func(*Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick = append(d.onClick, fn)
}

// Events returns a copy of the dispatched events.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Render serialises the current page state.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	for _, root := range d.doc.Nodes {
		if err := html.Render(&buf, root); err != nil {
			return "", fmt.Errorf("render page: %w", err)
		}
	}
	return buf.String(), nil
}

// wrap must be called with d.mu held.
func (d *Document) wrap(n *html.Node) *Node {
	if w, ok := d.nodes[n]; ok {
		return w
	}
	w := &Node{doc: d, n: n}
	d.nodes[n] = w
	return w
}

// Tag returns the element's tag name.
func (n *Node) Tag() string { return n.n.Data }

// Attr returns the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return attr(n.n, name)
}

// Text returns the value of an input, else the element's text content.
func (n *Node) Text() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	if hasValue(n.n) {
		v, _ := attr(n.n, "value")
		return v
	}
	return textContent(n.n)
}

// SetText replaces the element's value (inputs) or content (everything
// else) and records an input event.
func (n *Node) SetText(text string) error {
	n.doc.mu.Lock()
	if hasValue(n.n) {
		setAttr(n.n, "value", text)
	} else {
		for c := n.n.FirstChild; c != nil; {
			next := c.NextSibling
			n.n.RemoveChild(c)
			c = next
		}
		n.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	n.doc.events = append(n.doc.events, Event{Kind: EventInput, Target: n, Value: text})
	n.doc.mu.Unlock()
	return nil
}

// Click records a click event and runs the document's click hooks.
func (n *Node) Click() error {
	n.doc.mu.Lock()
	if _, disabled := attr(n.n, "disabled"); disabled {
		n.doc.mu.Unlock()
		return fmt.Errorf("click <%s>: element is disabled", n.n.Data)
	}
	n.doc.events = append(n.doc.events, Event{Kind: EventClick, Target: n})
	hooks := make([]func(*Node), len(n.doc.onClick))
	copy(hooks, n.doc.onClick)
	n.doc.mu.Unlock()

	for _, fn := range hooks {
		fn(n)
	}
	return nil
}

func (n *Node) String() string {
	if id, ok := n.Attr("id"); ok {
		return n.n.Data + "#" + id
	}
	return n.n.Data
}

// hasValue reports whether the element exposes a value attribute as its text.
func hasValue(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "input"
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
