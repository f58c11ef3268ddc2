package scan

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"privacy-guardian/internal/metrics"
	"privacy-guardian/internal/notify"
	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/platform"
	"privacy-guardian/internal/surface"
)

// fakeAnonymizer answers from a table keyed by message text; texts in fail
// degrade as if the classifier call had failed.
type fakeAnonymizer struct {
	mu    sync.Mutex
	spans map[string][]pii.RedactionSpan
	fail  map[string]bool
	seen  []string
}

func (f *fakeAnonymizer) Anonymize(_ context.Context, text string) pii.AnonymizationResult {
	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()
	if f.fail[text] {
		return pii.Degraded(text, errors.New("classifier status 500"))
	}
	return pii.AnonymizationResult{RedactedText: text, Spans: f.spans[text]}
}

type fakeStore struct {
	saved []pii.ScanReport
	err   error
}

func (s *fakeStore) SaveReport(_ context.Context, r pii.ScanReport) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

type fakeNotifier struct {
	counts []int
	err    error
}

func (n *fakeNotifier) NotifyLeaks(_ context.Context, c int) error {
	n.counts = append(n.counts, c)
	return n.err
}

var (
	phoneSpan = pii.RedactionSpan{Original: "555-123-4567", Replacement: "[PHONE]"}
	emailSpan = pii.RedactionSpan{Original: "a@b.com", Replacement: "[EMAIL]"}
	fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newAggregator(anon Anonymizer, st ReportStore, n *fakeNotifier, m *metrics.Metrics) *Aggregator {
	var notifier notify.Notifier
	if n != nil {
		notifier = n
	}
	return NewAggregator(anon, st, notifier, nil, m,
		WithClock(func() time.Time { return fixedTime }),
		WithIDs(func() string { return "report-1" }))
}

func TestScan_OneLeakOfTwo(t *testing.T) {
	anon := &fakeAnonymizer{spans: map[string][]pii.RedactionSpan{
		"call 555-123-4567": {phoneSpan},
	}}
	st := &fakeStore{}
	n := &fakeNotifier{}

	res := newAggregator(anon, st, n, nil).Scan(context.Background(),
		[]pii.Message{{Text: "call 555-123-4567"}, {Text: "hello"}}, "https://claude.ai/chat/1")

	if !res.Success || res.LeaksFound != 1 {
		t.Fatalf("Result = %+v", res)
	}
	want := pii.ScanReport{
		ID:                   "report-1",
		Timestamp:            fixedTime,
		SourceURL:            "https://claude.ai/chat/1",
		TotalMessagesScanned: 2,
		TotalLeaksFound:      1,
		Findings:             []pii.RedactionSpan{phoneSpan},
	}
	if !reflect.DeepEqual(res.Report, want) {
		t.Errorf("Report = %+v\nwant     %+v", res.Report, want)
	}
	if len(st.saved) != 1 || !reflect.DeepEqual(st.saved[0], want) {
		t.Errorf("saved = %+v", st.saved)
	}
	if !reflect.DeepEqual(n.counts, []int{1}) {
		t.Errorf("notifier counts = %v, want [1]", n.counts)
	}
}

func TestScan_OrderPreserved(t *testing.T) {
	anon := &fakeAnonymizer{spans: map[string][]pii.RedactionSpan{
		"m1": {emailSpan},
		"m3": {phoneSpan, emailSpan, emailSpan},
	}}
	res := newAggregator(anon, &fakeStore{}, nil, nil).Scan(context.Background(),
		[]pii.Message{{Text: "m1"}, {Text: "m2"}, {Text: "m3"}}, "")

	want := []pii.RedactionSpan{emailSpan, phoneSpan, emailSpan, emailSpan}
	if !reflect.DeepEqual(res.Report.Findings, want) {
		t.Errorf("Findings = %+v, want %+v", res.Report.Findings, want)
	}
	if res.Report.TotalLeaksFound != len(res.Report.Findings) {
		t.Error("TotalLeaksFound must equal len(Findings)")
	}
	if !reflect.DeepEqual(anon.seen, []string{"m1", "m2", "m3"}) {
		t.Errorf("messages processed as %v", anon.seen)
	}
}

func TestScan_PerMessageFailureDoesNotAbort(t *testing.T) {
	anon := &fakeAnonymizer{
		spans: map[string][]pii.RedactionSpan{"m1": {emailSpan}, "m3": {phoneSpan}},
		fail:  map[string]bool{"m2": true},
	}
	m := metrics.New()
	res := newAggregator(anon, &fakeStore{}, nil, m).Scan(context.Background(),
		[]pii.Message{{Text: "m1"}, {Text: "m2"}, {Text: "m3"}}, "")

	if !res.Success {
		t.Fatalf("partial failure must not fail the scan: %+v", res)
	}
	r := res.Report
	if r.TotalMessagesScanned != 3 || r.MessagesFailed != 1 || r.TotalLeaksFound != 2 {
		t.Errorf("report = %+v", r)
	}
	if !reflect.DeepEqual(r.Findings, []pii.RedactionSpan{emailSpan, phoneSpan}) {
		t.Errorf("Findings = %+v", r.Findings)
	}
	if m.MessagesFailed.Load() != 1 || m.MessagesScanned.Load() != 3 || m.LeaksFound.Load() != 2 {
		t.Errorf("metrics = %+v", m.Snapshot().Scans)
	}
}

func TestScan_NoLeaksNoNotification(t *testing.T) {
	n := &fakeNotifier{}
	st := &fakeStore{}
	res := newAggregator(&fakeAnonymizer{}, st, n, nil).Scan(context.Background(),
		[]pii.Message{{Text: "hello"}}, "")
	if !res.Success || res.LeaksFound != 0 {
		t.Errorf("Result = %+v", res)
	}
	if len(n.counts) != 0 {
		t.Errorf("notifier called with %v", n.counts)
	}
	if len(st.saved) != 1 {
		t.Error("a clean scan still overwrites the report")
	}
}

// cancellingAnonymizer cancels the scan's context while answering its
// first message.
type cancellingAnonymizer struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingAnonymizer) Anonymize(_ context.Context, text string) pii.AnonymizationResult {
	c.calls++
	if c.calls == 1 {
		c.cancel()
	}
	return pii.AnonymizationResult{RedactedText: text, Spans: []pii.RedactionSpan{phoneSpan}}
}

func TestScan_CancelledMidBatchIsNotPersisted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	anon := &cancellingAnonymizer{cancel: cancel}
	st := &fakeStore{}
	n := &fakeNotifier{}
	m := metrics.New()

	res := newAggregator(anon, st, n, m).Scan(ctx,
		[]pii.Message{{Text: "m1"}, {Text: "m2"}, {Text: "m3"}}, "")

	if res.Success || res.Error == "" {
		t.Errorf("Result = %+v, want failure", res)
	}
	if anon.calls != 1 {
		t.Errorf("anonymizer called %d times, want 1", anon.calls)
	}
	if len(st.saved) != 0 {
		t.Errorf("abandoned scan saved %d report(s)", len(st.saved))
	}
	if len(n.counts) != 0 {
		t.Errorf("abandoned scan notified %v", n.counts)
	}
	if got := m.ScansFailed.Load(); got != 1 {
		t.Errorf("ScansFailed = %d, want 1", got)
	}
	if got := m.ScansTotal.Load(); got != 0 {
		t.Errorf("ScansTotal = %d, want 0", got)
	}
}

func TestScan_EmptyBatch(t *testing.T) {
	res := newAggregator(&fakeAnonymizer{}, &fakeStore{}, nil, nil).Scan(context.Background(), nil, "")
	if !res.Success || res.Report.TotalMessagesScanned != 0 || res.Report.Findings == nil {
		t.Errorf("Result = %+v", res)
	}
}

func TestScan_PersistenceFailure(t *testing.T) {
	anon := &fakeAnonymizer{spans: map[string][]pii.RedactionSpan{"m1": {emailSpan}}}
	n := &fakeNotifier{}
	m := metrics.New()
	res := newAggregator(anon, &fakeStore{err: errors.New("disk full")}, n, m).Scan(context.Background(),
		[]pii.Message{{Text: "m1"}}, "")

	if res.Success || res.Error == "" {
		t.Fatalf("Result = %+v, want structured failure", res)
	}
	if res.LeaksFound != 1 || len(res.Report.Findings) != 1 {
		t.Error("batch results must still reach the caller")
	}
	if len(n.counts) != 0 {
		t.Error("no notification when the report was not saved")
	}
	if m.ScansFailed.Load() != 1 {
		t.Errorf("ScansFailed = %d", m.ScansFailed.Load())
	}
}

func TestScan_NotifierErrorIsNotFatal(t *testing.T) {
	anon := &fakeAnonymizer{spans: map[string][]pii.RedactionSpan{"m1": {emailSpan}}}
	n := &fakeNotifier{err: errors.New("webhook down")}
	res := newAggregator(anon, &fakeStore{}, n, nil).Scan(context.Background(), []pii.Message{{Text: "m1"}}, "")
	if !res.Success || len(n.counts) != 1 {
		t.Errorf("Result = %+v, notifications %v", res, n.counts)
	}
}

func TestNewAggregator_DefaultID(t *testing.T) {
	a := NewAggregator(&fakeAnonymizer{}, &fakeStore{}, nil, nil, nil)
	r1 := a.Scan(context.Background(), nil, "")
	r2 := a.Scan(context.Background(), nil, "")
	if r1.Report.ID == "" || r1.Report.ID == r2.Report.ID {
		t.Errorf("IDs %q, %q must be unique", r1.Report.ID, r2.Report.ID)
	}
}

func TestCollect(t *testing.T) {
	page, err := surface.ParseString("https://chat.openai.com/c/1", `<body>
<div data-message-author-role="user">   my email is a@b.com   </div>
<div data-message-author-role="assistant">assistant reply that is long</div>
<div data-message-author-role="user">short</div>
<div data-message-author-role="user">exactly10!</div>
<div data-message-author-role="user">eleven char</div>
</body>`)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := platform.Lookup(platform.ChatGPT)
	got := Collect(page, p, 10)
	want := []pii.Message{{Text: "my email is a@b.com"}, {Text: "eleven char"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect = %+v, want %+v", got, want)
	}
}
