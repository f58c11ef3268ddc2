package pii

import (
	"reflect"
	"testing"
)

func TestLocalCheck(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"email", "reach me at alice@example.com", true},
		{"email upper-case tld", "ALICE@EXAMPLE.COM", true},
		{"phone dashed", "call 555-123-4567", true},
		{"phone dotted", "call 555.123.4567 tonight", true},
		{"phone bare", "5551234567", true},
		{"ssn", "ssn 123-45-6789", true},
		{"card grouped", "card 4111 1111 1111 1111", true},
		{"card dashed", "4111-1111-1111-1111", true},
		{"card ungrouped", "4111111111111111", true},
		{"ipv4", "server at 192.168.10.4", true},
		{"plain text", "hello, how are you today?", false},
		{"short numbers", "I have 3 cats and 12 fish", false},
		{"empty", "", false},
		{"at sign without domain", "meet @ noon", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := LocalCheck(c.text); got != c.want {
				t.Errorf("LocalCheck(%q) = %v, want %v", c.text, got, c.want)
			}
		})
	}
}

func TestMatches_OrderedKinds(t *testing.T) {
	got := Matches("mail bob@corp.io from 10.0.0.1")
	want := []Kind{KindEmail, KindIPAddress}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Matches = %v, want %v", got, want)
	}
	if Matches("nothing here") != nil {
		t.Error("expected no kinds for clean text")
	}
}

func TestFallback_TagsSource(t *testing.T) {
	res := Fallback("my email is a@b.com")
	if !res.HasPII || res.Source != SourceLocalFallback {
		t.Errorf("Fallback = %+v, want hasPII from local fallback", res)
	}
	if res.Message == "" {
		t.Error("fallback should carry a diagnostic message")
	}
}

func TestAnonymizationResult_HasRedaction(t *testing.T) {
	const original = "My email is a@b.com"
	cases := []struct {
		name string
		res  AnonymizationResult
		want bool
	}{
		{"degraded", Degraded(original, nil), false},
		{"spans", AnonymizationResult{RedactedText: "My email is [EMAIL]", Spans: []RedactionSpan{{"a@b.com", "[EMAIL]"}}}, true},
		{"text differs without spans", AnonymizationResult{RedactedText: "My email is [EMAIL]"}, true},
		{"unchanged", AnonymizationResult{RedactedText: original}, false},
		{"empty redacted text", AnonymizationResult{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.res.HasRedaction(original); got != c.want {
				t.Errorf("HasRedaction = %v, want %v", got, c.want)
			}
		})
	}
}

func TestDegraded(t *testing.T) {
	res := Degraded("text", nil)
	if res.RedactedText != "text" || len(res.Spans) != 0 || !res.Failed() {
		t.Errorf("Degraded = %+v", res)
	}
	if res.Diagnostic() == "" {
		t.Error("degraded result needs a diagnostic")
	}
}
