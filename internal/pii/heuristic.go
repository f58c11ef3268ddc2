// Package pii talks to the remote PII classifier and provides the local,
// network-independent fallback detector used when the classifier cannot be
// reached.
//
// The local check is recall-oriented: false positives are acceptable, and
// any PII shape outside the pattern table is expected to be missed.
package pii

import "regexp"

// Kind names one local heuristic pattern.
type Kind string

// Local pattern kinds, in evaluation order.
const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "creditCard"
	KindIPAddress  Kind = "ipAddress"
)

// pattern pairs a compiled regex with its kind.
type pattern struct {
	re   *regexp.Regexp
	kind Kind
}

// patterns is evaluated in order against the raw text; no normalization is
// applied beyond what the expressions themselves allow.
var patterns = []pattern{
	{regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), KindEmail},
	{regexp.MustCompile(`\b\d{3}[\-.]?\d{3}[\-.]?\d{4}\b`), KindPhone},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), KindSSN},
	{regexp.MustCompile(`\b(?:\d{4}[\-\s]?){3}\d{4}\b`), KindCreditCard},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), KindIPAddress},
}

// LocalCheck reports whether any local pattern matches anywhere in text.
func LocalCheck(text string) bool {
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}

// Matches returns the kinds whose pattern matches text, in evaluation order.
func Matches(text string) []Kind {
	var kinds []Kind
	for _, p := range patterns {
		if p.re.MatchString(text) {
			kinds = append(kinds, p.kind)
		}
	}
	return kinds
}
