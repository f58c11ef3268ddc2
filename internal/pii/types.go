package pii

import "time"

// Source identifies which detector produced a DetectionResult.
type Source string

// Detection sources.
const (
	SourceRemote        Source = "backend"
	SourceLocalFallback Source = "local_fallback"
)

// DetectionResult is the outcome of one PII presence check. It is consumed by
// the interception workflow and never persisted.
type DetectionResult struct {
	HasPII  bool   `json:"hasPII"`
	Source  Source `json:"source"`
	Message string `json:"message,omitempty"`
}

// RedactionSpan pairs one detected value with its placeholder.
type RedactionSpan struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// AnonymizationResult carries the redacted text and the spans that were
// replaced, in order of discovery. Duplicate originals are kept.
//
// Message is the classifier's own diagnostic. Error is set only when the call
// itself failed and the result was degraded to a no-op.
type AnonymizationResult struct {
	RedactedText string          `json:"anonymized_text"`
	Spans        []RedactionSpan `json:"replacements"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Degraded returns the no-op result used when anonymization is unavailable:
// the text is unchanged, there are no spans, and Error records why.
func Degraded(text string, err error) AnonymizationResult {
	msg := "anonymization unavailable"
	if err != nil {
		msg = err.Error()
	}
	return AnonymizationResult{
		RedactedText: text,
		Spans:        []RedactionSpan{},
		Error:        msg,
	}
}

// Failed reports whether the result came from a failed call.
func (r AnonymizationResult) Failed() bool { return r.Error != "" }

// Diagnostic returns the failure reason if any, else the classifier message.
func (r AnonymizationResult) Diagnostic() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// HasRedaction reports whether the result offers an alternative to original.
func (r AnonymizationResult) HasRedaction(original string) bool {
	if r.RedactedText == "" {
		return false
	}
	return len(r.Spans) > 0 || r.RedactedText != original
}

// Message is one already-rendered conversation message.
type Message struct {
	Text string `json:"text"`
}

// ScanReport aggregates the findings of one history scan. It occupies a
// single persisted slot; each scan overwrites the previous report.
// TotalLeaksFound always equals len(Findings).
type ScanReport struct {
	ID                   string          `json:"id"`
	Timestamp            time.Time       `json:"timestamp"`
	SourceURL            string          `json:"url"`
	TotalMessagesScanned int             `json:"totalMessages"`
	TotalLeaksFound      int             `json:"leaksFound"`
	MessagesFailed       int             `json:"messagesFailed"`
	Findings             []RedactionSpan `json:"findings"`
}
