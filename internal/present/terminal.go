// Package present renders the blocking privacy decision to a human.
package present

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"privacy-guardian/internal/intercept"
)

// ErrNoInput is returned when the input closes before a choice is made.
var ErrNoInput = errors.New("no decision: input closed")

var labels = map[intercept.Decision]string{
	intercept.DecisionCancel:      "Cancel",
	intercept.DecisionUseRedacted: "Use Anonymized",
	intercept.DecisionProceed:     "Proceed Anyway",
}

// Terminal is a line-oriented Presenter. It prints the alert to w and reads
// the choice from r, asking again until a valid choice is entered.
//
// One goroutine owns r for the Terminal's lifetime. A line typed after a
// Present call gave up on its ctx is kept and answers the next call.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once
	lines chan line
}

type line struct {
	text string
	err  error
}

// NewTerminal returns a Terminal reading r and writing w.
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(r), out: w, lines: make(chan line)}
}

// Present renders p and blocks for a choice. Only ctx ends the wait early.
func (t *Terminal) Present(ctx context.Context, p intercept.Prompt) (intercept.Decision, error) {
	if err := t.render(p); err != nil {
		return "", err
	}
	t.start.Do(func() { go t.read() })
	return t.ask(ctx, p)
}

// read feeds lines to ask until the input fails, then closes lines.
func (t *Terminal) read() {
	defer close(t.lines)
	for {
		text, err := t.in.ReadString('\n')
		t.lines <- line{text, err}
		if err != nil {
			return
		}
	}
}

func (t *Terminal) render(p intercept.Prompt) error {
	var b strings.Builder
	b.WriteString("\n=== Privacy Alert ===\n\n")
	if len(p.Result.Spans) > 0 {
		b.WriteString("Detected PII:\n")
		for _, s := range p.Result.Spans {
			fmt.Fprintf(&b, "  %s -> %s\n", s.Original, s.Replacement)
		}
	} else {
		b.WriteString("Potential PII detected in your message\n")
	}
	if p.Result.Failed() {
		fmt.Fprintf(&b, "(no anonymized version available: %s)\n", p.Result.Error)
	}
	fmt.Fprintf(&b, "\nOriginal message:\n%s\n", indent(p.Original))
	if r, ok := p.Redacted(); ok {
		fmt.Fprintf(&b, "\nAnonymized version:\n%s\n", indent(r))
	}
	b.WriteString("\n")
	for i, c := range p.Choices {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, labels[c])
	}
	_, err := io.WriteString(t.out, b.String())
	return err
}

func (t *Terminal) ask(ctx context.Context, p intercept.Prompt) (intercept.Decision, error) {
	for {
		fmt.Fprintf(t.out, "Choice [1-%d]: ", len(p.Choices))
		var l line
		var ok bool
		select {
		case l, ok = <-t.lines:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if !ok {
			return "", ErrNoInput
		}
		if d, ok := parseChoice(strings.TrimSpace(l.text), p.Choices); ok {
			return d, nil
		}
		if l.err != nil {
			if errors.Is(l.err, io.EOF) {
				return "", ErrNoInput
			}
			return "", l.err
		}
		fmt.Fprintln(t.out, "Please pick one of the listed options.")
	}
}

// parseChoice accepts a 1-based index, the decision name, or the first
// letter of its label.
func parseChoice(s string, choices []intercept.Decision) (intercept.Decision, bool) {
	if s == "" {
		return "", false
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprint(n) == s {
		if n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
		return "", false
	}
	s = strings.ToLower(s)
	for _, c := range choices {
		label := strings.ToLower(labels[c])
		if s == string(c) || s == label || s == label[:1] {
			return c, true
		}
	}
	return "", false
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
