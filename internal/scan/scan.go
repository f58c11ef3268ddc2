// Package scan runs the anonymization pipeline over already-rendered chat
// history and aggregates the findings into a single persisted report.
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/notify"
	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/platform"
	"privacy-guardian/internal/surface"
)

// Anonymizer produces redaction spans for one message.
type Anonymizer interface {
	Anonymize(ctx context.Context, text string) pii.AnonymizationResult
}

// ReportStore holds the single report slot.
type ReportStore interface {
	SaveReport(ctx context.Context, r pii.ScanReport) error
}

// Result is what Scan returns to its caller. Report is always populated,
// even when persisting it failed.
type Result struct {
	Success    bool           `json:"success"`
	LeaksFound int            `json:"leaksFound"`
	Report     pii.ScanReport `json:"-"`
	Error      string         `json:"error,omitempty"`
}

// Aggregator scans message batches one message at a time.
type Aggregator struct {
	anon     Anonymizer
	store    ReportStore
	notifier notify.Notifier
	log      *logger.Logger
	metrics  *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

// WithIDs overrides the report ID source.
func WithIDs(next func() string) Option { return func(a *Aggregator) { a.newID = next } }

// NewAggregator wires an Aggregator. notifier, log and m may be nil.
func NewAggregator(anon Anonymizer, store ReportStore, notifier notify.Notifier, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Aggregator {
	if log == nil {
		log = logger.Discard()
	}
	a := &Aggregator{
		anon:     anon,
		store:    store,
		notifier: notifier,
		log:      log,
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Scan anonymizes each message in order and appends every reported span to
// the findings. A message whose call failed is counted and skipped. The
// report then replaces the stored one, and the notifier is told when any
// leak was found. A scan whose ctx ends first is abandoned: nothing is
// saved and nobody is notified, so the last complete report stays.
func (a *Aggregator) Scan(ctx context.Context, messages []pii.Message, sourceURL string) Result {
	report := pii.ScanReport{
		ID:        a.newID(),
		Timestamp: a.now().UTC(),
		SourceURL: sourceURL,
		Findings:  []pii.RedactionSpan{},
	}

	for i, m := range messages {
		if ctx.Err() != nil {
			break
		}
		res := a.anon.Anonymize(ctx, m.Text)
		if ctx.Err() != nil {
			break
		}
		report.TotalMessagesScanned++
		if res.Failed() {
			report.MessagesFailed++
			a.log.Warnf("message", "message %d/%d skipped: %s", i+1, len(messages), res.Error)
			continue
		}
		report.Findings = append(report.Findings, res.Spans...)
	}
	report.TotalLeaksFound = len(report.Findings)

	if err := ctx.Err(); err != nil {
		a.log.Warnf("abandon", "%s: stopped after %d/%d message(s): %v",
			orUnknown(sourceURL), report.TotalMessagesScanned, len(messages), err)
		if a.metrics != nil {
			a.metrics.ScansFailed.Add(1)
		}
		return Result{Report: report, Error: fmt.Sprintf("scan abandoned: %v", err)}
	}
	a.record(report)

	out := Result{Success: true, LeaksFound: report.TotalLeaksFound, Report: report}

	if err := a.store.SaveReport(ctx, report); err != nil {
		a.log.Errorf("persist", "report %s not saved: %v", report.ID, err)
		if a.metrics != nil {
			a.metrics.ScansFailed.Add(1)
		}
		out.Success = false
		out.Error = fmt.Sprintf("persist report: %v", err)
		return out
	}

	a.log.Infof("complete", "%s: %d message(s), %d leak(s), %d failed",
		orUnknown(sourceURL), report.TotalMessagesScanned, report.TotalLeaksFound, report.MessagesFailed)

	if report.TotalLeaksFound > 0 && a.notifier != nil {
		if err := a.notifier.NotifyLeaks(ctx, report.TotalLeaksFound); err != nil {
			a.log.Warnf("notify", "notification failed: %v", err)
		}
	}
	return out
}

func (a *Aggregator) record(r pii.ScanReport) {
	if a.metrics == nil {
		return
	}
	a.metrics.ScansTotal.Add(1)
	a.metrics.MessagesScanned.Add(int64(r.TotalMessagesScanned))
	a.metrics.MessagesFailed.Add(int64(r.MessagesFailed))
	a.metrics.LeaksFound.Add(int64(r.TotalLeaksFound))
}

// Collect reads the user's rendered messages from page, trimmed, keeping
// only those longer than minLen characters.
func Collect(page surface.Page, p platform.Profile, minLen int) []pii.Message {
	var out []pii.Message
	for _, el := range page.QueryAll(p.MessageLocator) {
		text := strings.TrimSpace(el.Text())
		if len([]rune(text)) > minLen {
			out = append(out, pii.Message{Text: text})
		}
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown source"
	}
	return s
}
